package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, filepath.Join(t.TempDir(), "data", "jobs.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	now := time.Now()
	st := Status{JobID: "a", State: StateProcessing, Filename: "book.pdf", CreatedAt: now, UpdatedAt: now}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	st.State = StateCompleted
	st.Progress = 100
	st.AudioPath = "/audio/a.mp3"
	st.UpdatedAt = now.Add(time.Second)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Expected no error on upsert, got %v", err)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	if jobs[0].State != StateCompleted || jobs[0].Progress != 100 {
		t.Errorf("Expected updated record, got %+v", jobs[0])
	}
	if jobs[0].AudioPath != "/audio/a.mp3" {
		t.Errorf("Expected audio path to persist, got %q", jobs[0].AudioPath)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if jobs, _ := store.List(ctx); len(jobs) != 0 {
		t.Errorf("Expected empty store, got %d jobs", len(jobs))
	}
}

func TestStore_InMemoryIsNoop(t *testing.T) {
	store, err := OpenStore(context.Background(), "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.Persistent() {
		t.Error("Expected non-persistent store")
	}
	if err := store.Save(context.Background(), Status{JobID: "x"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if jobs, err := store.List(context.Background()); err != nil || jobs != nil {
		t.Errorf("Expected nothing stored, got %v, %v", jobs, err)
	}
}
