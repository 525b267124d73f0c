package timeutil

import (
	"sync"
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", now, before)
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since returned a negative duration")
	}
}

func TestMockClockStep(t *testing.T) {
	start := time.Date(2021, 6, 14, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start, time.Second)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("first Now() = %v, want %v", got, start)
	}
	if got := c.Now(); !got.Equal(start.Add(time.Second)) {
		t.Errorf("second Now() = %v, want %v", got, start.Add(time.Second))
	}
	if got := c.Since(start); got != 2*time.Second {
		t.Errorf("Since() = %v, want 2s", got)
	}
	if got := c.Since(start); got != 2*time.Second {
		t.Errorf("Since() must not step the clock, got %v", got)
	}
}

func TestMockClockSetAdvance(t *testing.T) {
	start := time.Date(2021, 6, 14, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start, 0)

	c.Advance(time.Minute)
	if got := c.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v", got)
	}
	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() after Set = %v", got)
	}
}

func TestMockClockConcurrent(t *testing.T) {
	start := time.Date(2021, 6, 14, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Now()
		}()
	}
	wg.Wait()
	if got := c.Since(start); got != 50*time.Millisecond {
		t.Errorf("Since() = %v, want 50ms", got)
	}
}
