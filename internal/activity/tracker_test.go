package activity

import (
	"sync"
	"testing"
	"time"
)

func TestRegisterIgnoresBots(t *testing.T) {
	tr := NewTracker()
	tr.Register("c1", true)
	tr.Register("c1", false)
	tr.Register("c1", true)

	if got := tr.Get("c1"); got != 1 {
		t.Fatalf("Get() = %d, want 1", got)
	}
}

func TestRegisterReleasesPendingAtThreshold(t *testing.T) {
	tr := NewTracker()
	end := time.Now().Add(5 * time.Minute)
	tr.SetAwaiting("c1", "wcr", end, 3)

	for i := 0; i < 2; i++ {
		if _, ok := tr.Register("c1", false); ok {
			t.Fatalf("pending released after %d messages", i+1)
		}
	}

	pending, ok := tr.Register("c1", false)
	if !ok {
		t.Fatalf("pending not released at threshold")
	}
	if pending.Area != "wcr" || !pending.EndTime.Equal(end) {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	if _, still := tr.Awaiting("c1"); still {
		t.Fatalf("pending entry should be cleared once released")
	}
	if _, ok := tr.Register("c1", false); ok {
		t.Fatalf("pending released twice")
	}
}

func TestResetAndInitialized(t *testing.T) {
	tr := NewTracker()
	tr.Set("c1", 7)
	tr.Reset("c1")
	if got := tr.Get("c1"); got != 0 {
		t.Fatalf("Get() after Reset = %d, want 0", got)
	}

	if tr.IsInitialized("c1") {
		t.Fatalf("channel should start uninitialized")
	}
	tr.MarkInitialized("c1")
	if !tr.IsInitialized("c1") {
		t.Fatalf("channel should be initialized")
	}
}

func TestRegisterConcurrent(t *testing.T) {
	tr := NewTracker()
	tr.SetAwaiting("c1", "wcr", time.Now(), 50)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		released int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := tr.Register("c1", false); ok {
				mu.Lock()
				released++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if released != 1 {
		t.Fatalf("pending released %d times, want 1", released)
	}
	if got := tr.Get("c1"); got != 100 {
		t.Fatalf("Get() = %d, want 100", got)
	}
}
