// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/metrics"
)

func TestApply_ConcurrentSameVersion(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := NewService(NewMemoryStore(), pub)
	base := advance(t, svc, "room-1", 5)
	if base.Version != 5 {
		t.Fatalf("Version = %d, want 5", base.Version)
	}

	muts := []Mutation{Seek(100).By("alice"), Seek(200).By("bob")}
	results := make([]State, len(muts))
	errs := make([]error, len(muts))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range muts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Apply(context.Background(), "room-1", 5, muts[i])
		}(i)
	}
	close(start)
	wg.Wait()

	wins, stale := 0, 0
	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			winner = i
		case errors.Is(err, ErrStaleVersion):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || stale != 1 {
		t.Fatalf("wins = %d, stale = %d, want 1 and 1", wins, stale)
	}
	if results[winner].Version != 6 {
		t.Errorf("winner Version = %d, want 6", results[winner].Version)
	}

	got, err := svc.Get(context.Background(), "room-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 6 || got.Position != *muts[winner].Position {
		t.Errorf("stored state = %+v, want winner's mutation at version 6", got)
	}

	evs := pub.published()
	if n := len(evs); n != 6 {
		t.Fatalf("published %d events, want 6", n)
	}
	last := evs[len(evs)-1]
	if last.Playback.Version != 6 || last.Playback.ChangedBy != muts[winner].Actor {
		t.Errorf("last event = %+v", last.Playback)
	}
}

func TestApply_VersionIncrementsByOne(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	var st State
	for i, mut := range []Mutation{Play(), Pause(), Seek(10), SetSpeed(1.5), ChangeMedia("ep-2")} {
		next, err := svc.Apply(ctx, "room-1", st.Version, mut)
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", mut.Op, err)
		}
		if next.Version != uint64(i+1) {
			t.Fatalf("after %s Version = %d, want %d", mut.Op, next.Version, i+1)
		}
		st = next
	}

	if _, err := svc.Apply(ctx, "room-1", 3, Play()); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("old version error = %v, want ErrStaleVersion", err)
	}
	if !errors.Is(ErrStaleVersion, ErrConcurrency) {
		t.Error("ErrStaleVersion should wrap ErrConcurrency")
	}

	got, _ := svc.Get(ctx, "room-1")
	if got.Version != 5 {
		t.Errorf("stale mutation changed version to %d", got.Version)
	}
}

func TestApply_Mutations(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start State
		mut   Mutation
		want  State
	}{
		{
			name:  "play keeps position",
			start: State{Position: 30, Speed: 1},
			mut:   Play(),
			want:  State{Position: 30, Speed: 1, IsPlaying: true},
		},
		{
			name:  "pause freezes projected position",
			start: State{Position: 30, Speed: 2, IsPlaying: true, UpdatedAt: now.Add(-10 * time.Second)},
			mut:   Pause(),
			want:  State{Position: 50, Speed: 2},
		},
		{
			name:  "seek while playing",
			start: State{Position: 30, Speed: 1, IsPlaying: true, UpdatedAt: now.Add(-time.Minute)},
			mut:   Seek(5),
			want:  State{Position: 5, Speed: 1, IsPlaying: true},
		},
		{
			name:  "set speed",
			start: State{Position: 0, Speed: 1},
			mut:   SetSpeed(0.5),
			want:  State{Speed: 0.5},
		},
		{
			name:  "change media resets",
			start: State{MediaID: "ep-1", Position: 900, Speed: 1.25, IsPlaying: true, UpdatedAt: now},
			mut:   ChangeMedia("ep-2"),
			want:  State{MediaID: "ep-2", Speed: 1.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.start.RoomID = "room-1"
			tt.start.Version = 7

			got := tt.mut.applyTo(tt.start, now)

			if got.Version != 8 || !got.UpdatedAt.Equal(now) {
				t.Errorf("Version = %d, UpdatedAt = %v", got.Version, got.UpdatedAt)
			}
			if got.MediaID != tt.want.MediaID || got.Position != tt.want.Position ||
				got.Speed != tt.want.Speed || got.IsPlaying != tt.want.IsPlaying {
				t.Errorf("applyTo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApply_InvalidMutation(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := NewService(NewMemoryStore(), pub)

	tests := []struct {
		name string
		mut  Mutation
	}{
		{"unknown op", Mutation{Op: "rewind"}},
		{"empty op", Mutation{}},
		{"negative seek", Seek(-1)},
		{"seek without position", Mutation{Op: OpSeek}},
		{"speed too high", SetSpeed(8)},
		{"speed too low", SetSpeed(0.1)},
		{"set speed without speed", Mutation{Op: OpSetSpeed}},
		{"change media without id", Mutation{Op: OpChangeMedia}},
	}

	before := testutil.ToFloat64(metrics.PlaybackApplies.WithLabelValues(metrics.ApplyInvalid))
	for _, tt := range tests {
		if _, err := svc.Apply(context.Background(), "room-1", 0, tt.mut); !errors.Is(err, ErrInvalidMutation) {
			t.Errorf("%s: error = %v, want ErrInvalidMutation", tt.name, err)
		}
	}
	after := testutil.ToFloat64(metrics.PlaybackApplies.WithLabelValues(metrics.ApplyInvalid))
	if after-before < float64(len(tests)) {
		t.Errorf("invalid applies delta = %v, want at least %d", after-before, len(tests))
	}

	if n := len(pub.published()); n != 0 {
		t.Errorf("published %d events for invalid mutations", n)
	}
	st, _ := svc.Get(context.Background(), "room-1")
	if st.Version != 0 {
		t.Errorf("Version = %d, want 0", st.Version)
	}
}

func TestApply_PersistFailurePublishesNothing(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := NewService(failingStore{NewMemoryStore()}, pub)

	_, err := svc.Apply(context.Background(), "room-1", 0, Play())
	if !errors.Is(err, ErrPersist) || !errors.Is(err, errDiskFull) {
		t.Fatalf("error = %v, want ErrPersist wrapping the store error", err)
	}
	if n := len(pub.published()); n != 0 {
		t.Errorf("published %d events after persist failure", n)
	}
}

func TestApply_PublishFailureKeepsState(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{err: errors.New("hub closed")}
	svc := NewService(NewMemoryStore(), pub)

	st, err := svc.Apply(context.Background(), "room-1", 0, Play())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if st.Version != 1 {
		t.Errorf("Version = %d, want 1", st.Version)
	}
	got, _ := svc.Get(context.Background(), "room-1")
	if got.Version != 1 || !got.IsPlaying {
		t.Errorf("stored = %+v", got)
	}
}

func TestApply_ChangeMediaAnnouncesMedia(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := NewService(NewMemoryStore(), pub)

	if _, err := svc.Apply(context.Background(), "room-1", 0, ChangeMedia("ep-9").By("host")); err != nil {
		t.Fatal(err)
	}

	evs := pub.published()
	if len(evs) != 2 {
		t.Fatalf("published %d events, want 2", len(evs))
	}
	if evs[0].Kind != events.KindPlaybackChanged || evs[1].Kind != events.KindMediaChanged {
		t.Fatalf("kinds = %s, %s", evs[0].Kind, evs[1].Kind)
	}
	if evs[1].Media.MediaID != "ep-9" || evs[1].Media.Version != 1 || evs[1].Media.ChangedBy != "host" {
		t.Errorf("media event = %+v", evs[1].Media)
	}
	for _, ev := range evs {
		if err := ev.Validate(); err != nil {
			t.Errorf("published invalid event: %v", err)
		}
	}
}

func TestApply_RoomsIndependent(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(), nil)
	advance(t, svc, "room-a", 3)

	st, err := svc.Apply(context.Background(), "room-b", 0, Play())
	if err != nil {
		t.Fatalf("room-b Apply() error = %v", err)
	}
	if st.Version != 1 {
		t.Errorf("room-b Version = %d, want 1", st.Version)
	}
	if n := svc.locks.size(); n != 0 {
		t.Errorf("%d room locks retained after apply", n)
	}
}

func TestApply_ConcurrentRacersMonotonic(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(), nil)
	ctx := context.Background()

	const workers, attempts = 8, 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				cur, err := svc.Get(ctx, "room-1")
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := svc.Apply(ctx, "room-1", cur.Version, Seek(float64(i))); err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				} else if !errors.Is(err, ErrStaleVersion) {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	st, _ := svc.Get(ctx, "room-1")
	if st.Version != uint64(applied) {
		t.Errorf("Version = %d, accepted mutations = %d", st.Version, applied)
	}
}
