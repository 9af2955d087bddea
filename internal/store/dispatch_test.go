package store

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDispatchRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Dispatches()

	d := &Dispatch{Code: "G3", Gesture: "Peace Sign", Outcome: "sent", SentAt: t0}
	if err := repo.Create(d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	got, err := repo.GetByID(d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Code != "G3" || got.Gesture != "Peace Sign" || got.Outcome != "sent" || got.RunID != "" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.SentAt.Equal(t0) {
		t.Errorf("SentAt = %v, want %v", got.SentAt, t0)
	}
}

func TestDispatchRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Dispatches().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestDispatchRepository_Create_Constraints(t *testing.T) {
	s := newTestStore(t)
	repo := s.Dispatches()

	tests := []struct {
		name string
		d    Dispatch
	}{
		{"unknown code", Dispatch{Code: "G9", Gesture: "x", Outcome: "sent"}},
		{"unknown outcome", Dispatch{Code: "G1", Gesture: "Open Hand", Outcome: "queued"}},
		{"missing run", Dispatch{Code: "G1", Gesture: "Open Hand", Outcome: "sent", RunID: "ghost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.d
			if err := repo.Create(&d); err == nil {
				t.Error("expected constraint error")
			}
		})
	}
}

func TestDispatchRepository_Recent(t *testing.T) {
	s := newTestStore(t)
	repo := s.Dispatches()

	codes := []string{"G1", "G2", "G1", "G7", "G4"}
	for i, code := range codes {
		d := &Dispatch{Code: code, Gesture: "g", Outcome: "link_unavailable", SentAt: t0.Add(time.Duration(i) * 3 * time.Second)}
		if err := repo.Create(d); err != nil {
			t.Fatalf("Create(%s) error = %v", code, err)
		}
	}

	recent, err := repo.Recent(3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	want := []string{"G4", "G7", "G1"}
	if len(recent) != len(want) {
		t.Fatalf("Recent(3) returned %d rows", len(recent))
	}
	for i := range want {
		if recent[i].Code != want[i] {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].Code, want[i])
		}
	}

	all, err := repo.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(all) != len(codes) {
		t.Errorf("Recent(0) returned %d rows, want %d", len(all), len(codes))
	}
}

func TestDispatchRepository_CountByCode(t *testing.T) {
	s := newTestStore(t)
	repo := s.Dispatches()

	for _, code := range []string{"G1", "G2", "G1", "G1", "G6"} {
		if err := repo.Create(&Dispatch{Code: code, Gesture: "g", Outcome: "sent"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	counts, err := repo.CountByCode()
	if err != nil {
		t.Fatalf("CountByCode() error = %v", err)
	}
	if counts["G1"] != 3 || counts["G2"] != 1 || counts["G6"] != 1 || len(counts) != 3 {
		t.Errorf("CountByCode() = %v", counts)
	}
}

func TestDispatchRepository_DeleteBefore(t *testing.T) {
	s := newTestStore(t)
	repo := s.Dispatches()

	for i := 0; i < 4; i++ {
		d := &Dispatch{Code: "G2", Gesture: "Fist", Outcome: "failed", Error: "write timeout", SentAt: t0.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.DeleteBefore(t0.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteBefore() removed %d, want 2", n)
	}

	left, _ := repo.Recent(10)
	if len(left) != 2 || left[0].Error != "write timeout" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestRunRepository(t *testing.T) {
	s := newTestStore(t)
	runs := s.Runs()

	run := &Run{Strategy: "rules", Port: "/dev/ttyUSB0", LinkAvailable: false, StartedAt: t0}
	if err := runs.Start(run); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Dispatches().Create(&Dispatch{RunID: run.ID, Code: "G5", Gesture: "Thumbs Up", Outcome: "link_unavailable"}); err != nil {
		t.Fatalf("Create() with run error = %v", err)
	}

	got, err := runs.GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FinishedAt != nil || got.Strategy != "rules" || got.LinkAvailable {
		t.Errorf("unfinished run = %+v", got)
	}

	if err := runs.Finish(run.ID, 420, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	got, err = runs.GetByID(run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Frames != 420 || got.FinishedAt == nil || !got.FinishedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("finished run = %+v", got)
	}

	if err := runs.Finish("missing", 1, t0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(missing) error = %v, want ErrNotFound", err)
	}
}
