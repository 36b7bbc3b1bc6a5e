package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenclass/selcoach/internal/screening"
)

func TestMemorySaverRoundTrip(t *testing.T) {
	ctx := context.Background()
	saver := NewMemorySaver()

	snap := screening.Snapshot{
		Date:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Grade:       "3rd Grade",
		NumStudents: 2,
		ScreeningData: map[string][]int{
			"Student 1": {1, 2, 1, 2, 1},
			"Student 2": {3, 3, 4, 3, 3},
		},
		Interventions: map[string]string{"Student 1": "daily check-in"},
	}
	if err := saver.Save(ctx, "sess-1", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := saver.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Grade != snap.Grade || got.NumStudents != snap.NumStudents {
		t.Fatalf("snapshot header changed: %+v", got)
	}
	if len(got.ScreeningData) != 2 || got.Interventions["Student 1"] != "daily check-in" {
		t.Fatalf("snapshot payload changed: %+v", got)
	}

	restored := screening.Restore(got)
	if restored.State() != screening.StateComplete {
		t.Fatalf("restored state = %q", restored.State())
	}
}

func TestMemorySaverMissing(t *testing.T) {
	ctx := context.Background()
	saver := NewMemorySaver()
	if _, err := saver.Load(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load of missing snapshot: %v", err)
	}

	if err := saver.Save(ctx, "sess-1", screening.Snapshot{Grade: "1st Grade"}); err != nil {
		t.Fatal(err)
	}
	if err := saver.Delete(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := saver.Load(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete: %v", err)
	}
}
