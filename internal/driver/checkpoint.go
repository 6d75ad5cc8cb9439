package driver

import (
	"encoding/gob"
	"fmt"
	"os"
)

// BatchCheckpoint is resumable batch progress: which input paths have
// already been decompiled, and which remain. Directly grounded on the
// teacher's gob-encoded search checkpoint, carrying the same save/load
// shape over a different payload.
type BatchCheckpoint struct {
	Completed []string
	Pending   []string
}

// SaveCheckpoint writes ckpt to path, truncating any existing file.
func SaveCheckpoint(path string, ckpt *BatchCheckpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("driver: creating checkpoint %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(ckpt); err != nil {
		return fmt.Errorf("driver: encoding checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a BatchCheckpoint previously written by SaveCheckpoint.
func LoadCheckpoint(path string) (*BatchCheckpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: opening checkpoint %s: %w", path, err)
	}
	defer f.Close()
	var ckpt BatchCheckpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("driver: decoding checkpoint %s: %w", path, err)
	}
	return &ckpt, nil
}

// Resume splits paths into those still pending according to ckpt, using
// ckpt's Completed set to filter out work already done. A nil ckpt resumes
// nothing, returning paths unchanged.
func Resume(paths []string, ckpt *BatchCheckpoint) []string {
	if ckpt == nil || len(ckpt.Completed) == 0 {
		return paths
	}
	done := make(map[string]bool, len(ckpt.Completed))
	for _, p := range ckpt.Completed {
		done[p] = true
	}
	var pending []string
	for _, p := range paths {
		if !done[p] {
			pending = append(pending, p)
		}
	}
	return pending
}
