package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	start := time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)

	t.Run("stays frozen between mutations", func(t *testing.T) {
		clock := NewClock(start)
		if !clock.Now().Equal(start) {
			t.Fatalf("expected %v, got %v", start, clock.Now())
		}
		if !clock.Now().Equal(clock.Current()) {
			t.Fatal("Now and Current disagree")
		}
	})

	t.Run("zero start falls back to the reference time", func(t *testing.T) {
		clock := NewClock(time.Time{})
		if !clock.Now().Equal(ReferenceTime()) {
			t.Fatalf("expected reference time, got %v", clock.Now())
		}
	})

	t.Run("advance and set move the clock", func(t *testing.T) {
		clock := NewClock(start)

		if got := clock.Advance(45 * time.Minute); !got.Equal(start.Add(45 * time.Minute)) {
			t.Fatalf("advance returned %v", got)
		}

		target := start.Add(3 * time.Hour)
		clock.Set(target)
		if !clock.Now().Equal(target) {
			t.Fatalf("expected %v after set, got %v", target, clock.Now())
		}
	})

	t.Run("injected now func tracks mutations", func(t *testing.T) {
		clock := NewClock(start)
		now := clock.NowFunc()

		clock.Advance(time.Minute)
		if !now().Equal(start.Add(time.Minute)) {
			t.Fatalf("now func returned %v", now())
		}
	})

	t.Run("nil clock degrades to the wall clock", func(t *testing.T) {
		var clock *Clock
		if clock.NowFunc()().IsZero() {
			t.Fatal("expected a live time source from a nil clock")
		}
	})
}
