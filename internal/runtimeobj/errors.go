// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runtimeobj

import "errors"

// The four error kinds decoders and the node factory wrap with
// fmt.Errorf("...: %w", ...), so callers can test with errors.Is while
// still getting a specific message.
var (
	// ErrNotFound: no meta-type candidate verifies; a named type is
	// absent from the target. (A process filter that matches nothing
	// reports platform.ErrNoProcess instead.)
	ErrNotFound = errors.New("runtimeobj: not found")

	// ErrInvalidAddr: a zero or unmapped address was given to a node
	// factory call.
	ErrInvalidAddr = errors.New("runtimeobj: invalid address")

	// ErrOutOfBounds: a typed view would exceed the region it targets.
	ErrOutOfBounds = errors.New("runtimeobj: out of bounds")

	// ErrDecodeFail: a node is not of the type its decoder expects, a
	// type-name buffer is empty or unreadable, a size field is negative,
	// or a list/long variable-length tail extends past a snapshot. A dict
	// entry whose key is not a string is skipped, not reported.
	ErrDecodeFail = errors.New("runtimeobj: decode failed")
)
