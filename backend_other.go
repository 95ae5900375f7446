// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux && !darwin

package tickloop

// NewPlatformBackend always fails with ErrBackendUnsupported on this
// platform. Use WithBackend, e.g. with NewNullBackend.
func NewPlatformBackend(int) (Backend, error) {
	return nil, ErrBackendUnsupported
}
