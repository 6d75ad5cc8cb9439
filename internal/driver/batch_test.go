package driver

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSample(t *testing.T, dir, name string, addr, val uint32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, rowsToBytes(t, constRow(addr, val)), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestRunBatchIsolatesOneBadFile(t *testing.T) {
	dir := t.TempDir()
	good1 := writeSample(t, dir, "a.zkr", 1, 1)
	good2 := writeSample(t, dir, "b.zkr", 2, 2)

	badPath := filepath.Join(dir, "c.zkr")
	var zero [21]uint32
	words := zero[:]
	data := make([]byte, len(words)*4)
	if err := os.WriteFile(badPath, data, 0o644); err != nil {
		t.Fatalf("writing bad fixture: %v", err)
	}

	result := RunBatch([]string{good1, good2, badPath}, Options{}, 2)
	all := result.Results()
	if len(all) != 3 {
		t.Fatalf("got %d results, want 3", len(all))
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Path != badPath {
		t.Fatalf("expected exactly %s to fail, got %+v", badPath, failed)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.gob")

	want := &BatchCheckpoint{Completed: []string{"a.zkr", "b.zkr"}, Pending: []string{"c.zkr"}}
	if err := SaveCheckpoint(path, want); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if len(got.Completed) != 2 || len(got.Pending) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestResumeFiltersCompletedPaths(t *testing.T) {
	paths := []string{"a.zkr", "b.zkr", "c.zkr"}
	ckpt := &BatchCheckpoint{Completed: []string{"a.zkr"}}
	pending := Resume(paths, ckpt)
	if len(pending) != 2 || pending[0] != "b.zkr" || pending[1] != "c.zkr" {
		t.Fatalf("got %v", pending)
	}
}
