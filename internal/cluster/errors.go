// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package cluster

import "errors"

// ErrPublish is returned by Manager.Publish when the event itself is
// unusable. Forward failures are never reported through it.
var ErrPublish = errors.New("publish room event")

// ErrClosed is returned by Manager.Publish after Manager.Close.
var ErrClosed = errors.New("cluster manager closed")
