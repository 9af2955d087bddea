package command

import (
	"testing"
	"time"
)

func at(base time.Time, seconds float64) time.Time {
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func TestDebouncer_CooldownSequence(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	// Process started well before the first gesture.
	d := NewDebouncer(2*time.Second, at(base, -10))

	steps := []struct {
		code Code
		t    float64
		want bool
	}{
		{G1, 0, true},    // first command
		{G1, 1, false},   // same code, inside window
		{G2, 1.5, false}, // different code, still inside window
		{G1, 2.5, false}, // outside window but same as last sent
	}

	accepted := 0
	for _, s := range steps {
		got, ok := d.TryAccept(s.code, true, at(base, s.t))
		if ok != s.want {
			t.Errorf("%s@%.1f: accepted=%v, want %v", s.code, s.t, ok, s.want)
		}
		if ok {
			accepted++
			if got != s.code {
				t.Errorf("%s@%.1f: returned %s", s.code, s.t, got)
			}
		}
	}

	if accepted != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", accepted)
	}

	st := d.State()
	if st.LastSent != G1 || !st.LastSentAt.Equal(base) {
		t.Errorf("state = %+v, want G1 at %v", st, base)
	}
}

func TestDebouncer_DifferentCodeAfterCooldown(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(2*time.Second, at(base, -10))

	if _, ok := d.TryAccept(G1, true, base); !ok {
		t.Fatal("first command should be accepted")
	}

	t.Run("exactly at cooldown is suppressed", func(t *testing.T) {
		if _, ok := d.TryAccept(G2, true, at(base, 2)); ok {
			t.Error("elapsed == cooldown must not pass the gate")
		}
	})

	t.Run("past cooldown is accepted", func(t *testing.T) {
		got, ok := d.TryAccept(G2, true, at(base, 2.01))
		if !ok || got != G2 {
			t.Errorf("TryAccept = %s, %v; want G2, true", got, ok)
		}
	})

	t.Run("earlier code may return after another cooldown", func(t *testing.T) {
		if _, ok := d.TryAccept(G1, true, at(base, 3)); ok {
			t.Error("G1 inside new window should be suppressed")
		}
		if _, ok := d.TryAccept(G1, true, at(base, 4.5)); !ok {
			t.Error("G1 after the window should be accepted")
		}
	})
}

func TestDebouncer_StartupWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(2*time.Second, start)

	if _, ok := d.TryAccept(G4, true, at(start, 1)); ok {
		t.Error("command within cooldown of process start should be suppressed")
	}
	if st := d.State(); st.HasSent {
		t.Errorf("state changed on rejection: %+v", st)
	}
	if _, ok := d.TryAccept(G4, true, at(start, 2.5)); !ok {
		t.Error("command after startup window should be accepted")
	}
}

func TestDebouncer_AbsentCandidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(2*time.Second, start)
	before := d.State()

	for i := 0; i < 50; i++ {
		if _, ok := d.TryAccept("", false, at(start, float64(i))); ok {
			t.Fatalf("absent candidate accepted at step %d", i)
		}
	}

	if after := d.State(); after != before {
		t.Errorf("state changed: before %+v, after %+v", before, after)
	}
}

func TestNewDebouncer_DefaultCooldown(t *testing.T) {
	d := NewDebouncer(0, time.Now())
	if d.Cooldown() != DefaultCooldown {
		t.Errorf("Cooldown() = %v, want %v", d.Cooldown(), DefaultCooldown)
	}
}
