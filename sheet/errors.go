// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package sheet

import "errors"

var (
	// ErrStoreUnavailable means the store could not be reached at all.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrStoreWriteFailed means an append could not be dispatched.
	ErrStoreWriteFailed = errors.New("record store write failed")

	// ErrStoreWriteUnconfirmed means an append was dispatched but the store did
	// not acknowledge it. Only reported when writes are confirmable.
	ErrStoreWriteUnconfirmed = errors.New("record store write unconfirmed")

	// ErrNotConfigured means no store URL was given.
	ErrNotConfigured = errors.New("record store URL not configured")
)
