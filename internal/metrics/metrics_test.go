// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordForward(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"ok", ForwardOK},
		{"failed", ForwardFailed},
		{"skipped", ForwardSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ClusterForwards.WithLabelValues(tt.result))
			RecordForward(tt.result, 5*time.Millisecond)
			after := testutil.ToFloat64(ClusterForwards.WithLabelValues(tt.result))
			if after-before != 1 {
				t.Errorf("forwards{%s} delta = %v, want 1", tt.result, after-before)
			}
		})
	}
}

func TestRecordAdmission(t *testing.T) {
	before := testutil.ToFloat64(Admissions.WithLabelValues(AdmissionUserLimit))
	RecordAdmission(AdmissionUserLimit)
	RecordAdmission(AdmissionUserLimit)
	if got := testutil.ToFloat64(Admissions.WithLabelValues(AdmissionUserLimit)) - before; got != 2 {
		t.Errorf("admissions{user_limit} delta = %v, want 2", got)
	}
}

func TestSetTransportConnected(t *testing.T) {
	SetTransportConnected(true)
	if got := testutil.ToFloat64(TransportConnected); got != 1 {
		t.Errorf("TransportConnected = %v, want 1", got)
	}
	SetTransportConnected(false)
	if got := testutil.ToFloat64(TransportConnected); got != 0 {
		t.Errorf("TransportConnected = %v, want 0", got)
	}
}

func TestRecordPlaybackApply(t *testing.T) {
	before := testutil.ToFloat64(PlaybackApplies.WithLabelValues(ApplyStale))
	RecordPlaybackApply(ApplyStale, time.Millisecond)
	if got := testutil.ToFloat64(PlaybackApplies.WithLabelValues(ApplyStale)) - before; got != 1 {
		t.Errorf("applies{stale} delta = %v, want 1", got)
	}
}

// TestConcurrentMetricRecording tests thread safety of metric recording
func TestConcurrentMetricRecording(t *testing.T) {
	const goroutines, perGoroutine = 50, 40

	before := testutil.ToFloat64(HubDeliveries)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				RecordDelivery()
				RecordDrop(DropFull)
				RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(HubDeliveries) - before; got != goroutines*perGoroutine {
		t.Errorf("deliveries delta = %v, want %d", got, goroutines*perGoroutine)
	}
}
