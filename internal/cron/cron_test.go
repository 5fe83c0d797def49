package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	for _, expr := range []string{"@every 1s", "30s", "*/5 * * * * *", "0 * * * *", "@hourly"} {
		if _, err := Parse(expr); err != nil {
			t.Fatalf("Parse(%q): %v", expr, err)
		}
	}
	for _, expr := range []string{"", "-1s", "every day", "* * *"} {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error", expr)
		}
	}
	s, _ := Parse("30s")
	if got := s.Next(t0); !got.Equal(t0.Add(30 * time.Second)) {
		t.Fatalf("next = %v", got)
	}
}

func TestAddValidation(t *testing.T) {
	s := NewScheduler(clockwork.NewFakeClockAt(t0), nil)
	noop := func(context.Context) {}
	if err := s.Add(Job{Schedule: "1s", Run: noop}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if err := s.Add(Job{Name: "a", Schedule: "1s"}); err == nil {
		t.Fatalf("expected error for nil run")
	}
	if err := s.Add(Job{Name: "a", Schedule: "1s", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Job{Name: "a", Schedule: "2s", Run: noop}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for job")
		return ""
	}
}

func TestJobsFireOnSchedule(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	s := NewScheduler(fc, nil)
	fired := make(chan string, 16)
	_ = s.Add(Job{Name: "tick", Schedule: "@every 1s", Run: func(context.Context) { fired <- "tick" }})
	_ = s.Add(Job{Name: "refresh", Schedule: "@every 3s", Run: func(context.Context) { fired <- "refresh" }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	var got []string
	for i := 0; i < 3; i++ {
		if err := fc.BlockUntilContext(ctx, 1); err != nil {
			t.Fatal(err)
		}
		fc.Advance(time.Second)
		got = append(got, waitFor(t, fired))
		if i == 2 {
			got = append(got, waitFor(t, fired))
		}
	}
	want := []string{"tick", "tick", "tick", "refresh"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestDoRunsOnLoopAndSerializes(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	s := NewScheduler(fc, nil)
	var inFlight, maxInFlight atomic.Int32
	enter := func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
	}
	_ = s.Add(Job{Name: "tick", Schedule: "1s", Run: func(context.Context) { enter(); inFlight.Add(-1) }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	for i := 0; i < 20; i++ {
		err := s.Do(ctx, func(context.Context) {
			enter()
			inFlight.Add(-1)
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		fc.Advance(500 * time.Millisecond)
	}
	if maxInFlight.Load() != 1 {
		t.Fatalf("callbacks overlapped: max in flight %d", maxInFlight.Load())
	}
}

func TestDoAfterStop(t *testing.T) {
	s := NewScheduler(clockwork.NewFakeClockAt(t0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = s.Run(ctx); close(done) }()
	cancel()
	<-done
	if err := s.Do(context.Background(), func(context.Context) {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Run should fail, got %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	s := NewScheduler(clockwork.NewFakeClockAt(t0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	if err := s.Do(ctx, func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	ran := false
	if err := s.Do(ctx, func(context.Context) { ran = true }); err != nil || !ran {
		t.Fatalf("scheduler dead after panic: %v", err)
	}
}
