package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not reached in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_Fires(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired int32
	s.Schedule(TimerMuteExpiry, "chat-1", "user-1", time.Now().Add(20*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
	if s.Pending() != 0 {
		t.Errorf("Expected fired timer to be removed, got %d pending", s.Pending())
	}
}

func TestScheduler_PastDeadlineFiresImmediately(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired int32
	s.Schedule(TimerVerificationExpiry, "chat-1", "user-1", time.Now().Add(-time.Minute), func() {
		atomic.AddInt32(&fired, 1)
	})

	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired int32
	s.Schedule(TimerMuteExpiry, "chat-1", "user-1", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	if !s.Cancel(TimerMuteExpiry, "chat-1", "user-1") {
		t.Fatal("Expected Cancel to report a pending timer")
	}
	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Cancelled timer must not fire")
	}
	if s.Cancel(TimerMuteExpiry, "chat-1", "user-1") {
		t.Error("Second cancel should report nothing pending")
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var first, second int32
	s.Schedule(TimerVerificationExpiry, "chat-1", "user-1", time.Now().Add(30*time.Millisecond), func() {
		atomic.AddInt32(&first, 1)
	})
	s.Schedule(TimerVerificationExpiry, "chat-1", "user-1", time.Now().Add(60*time.Millisecond), func() {
		atomic.AddInt32(&second, 1)
	})

	if s.Pending() != 1 {
		t.Fatalf("Expected one timer after replacement, got %d", s.Pending())
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&second) == 1 })
	if atomic.LoadInt32(&first) != 0 {
		t.Error("Replaced timer must not fire")
	}
}

func TestScheduler_FiredTimerDoesNotUnregisterReplacement(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// a timer firing at the moment its key is rescheduled must not strip
	// the replacement from the registry; the replacement stays cancellable
	for i := 0; i < 200; i++ {
		s.Schedule(TimerVerificationExpiry, "chat-1", "user-1", time.Now(), func() {})
		s.Schedule(TimerVerificationExpiry, "chat-1", "user-1", time.Now().Add(time.Hour), func() {})
		if !s.Cancel(TimerVerificationExpiry, "chat-1", "user-1") {
			t.Fatalf("Replacement timer missing from registry on iteration %d", i)
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Expected empty registry, got %d pending", s.Pending())
	}
}

func TestScheduler_KeysAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var n int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, user := range []string{"user-1", "user-2"} {
		s.Schedule(TimerMuteExpiry, "chat-1", user, time.Now().Add(10*time.Millisecond), func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}
	// same user, different kind, is also its own key
	if s.Pending() != 2 {
		t.Fatalf("Expected 2 timers, got %d", s.Pending())
	}
	wg.Wait()
	if atomic.LoadInt32(&n) != 2 {
		t.Errorf("Expected both timers to fire, got %d", n)
	}
}

func TestScheduler_StopRejectsNewTimers(t *testing.T) {
	s := NewScheduler()
	s.Schedule(TimerMuteExpiry, "chat-1", "user-1", time.Now().Add(time.Hour), func() {})
	s.Stop()

	if s.Pending() != 0 {
		t.Errorf("Expected no timers after Stop, got %d", s.Pending())
	}
	s.Schedule(TimerMuteExpiry, "chat-1", "user-2", time.Now().Add(time.Hour), func() {})
	if s.Pending() != 0 {
		t.Error("Stopped scheduler must reject new timers")
	}
}
