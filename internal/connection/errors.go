// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package connection

import (
	"errors"
	"fmt"
)

// ErrAdmission is wrapped by every admission rejection.
var ErrAdmission = errors.New("connection admission denied")

// Admission rejections, one per cap. Check with errors.Is.
var (
	ErrGlobalLimitExceeded = fmt.Errorf("%w: node connection limit reached", ErrAdmission)
	ErrRoomLimitExceeded   = fmt.Errorf("%w: room connection limit reached", ErrAdmission)
	ErrUserLimitExceeded   = fmt.Errorf("%w: user connection limit reached", ErrAdmission)
)

// ErrUnknownConnection is returned for an id with no live record.
var ErrUnknownConnection = errors.New("unknown connection")

// ErrInvalidIdentity is returned when a user or room id is unusable.
var ErrInvalidIdentity = errors.New("invalid user or room id")
