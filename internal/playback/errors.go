// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"errors"
	"fmt"
)

// ErrConcurrency is wrapped by every optimistic concurrency failure.
var ErrConcurrency = errors.New("playback concurrency conflict")

// ErrStaleVersion means the caller's expected version is not the current
// one. The caller should reload and retry or report a conflict.
var ErrStaleVersion = fmt.Errorf("%w: stale version", ErrConcurrency)

// ErrInvalidMutation is returned for a mutation that fails validation.
var ErrInvalidMutation = errors.New("invalid playback mutation")

// ErrPersist is returned when the store could not save an accepted
// mutation. Nothing is published in that case.
var ErrPersist = errors.New("persist playback state")
