package driver

import (
	"runtime"
	"sync"
	"time"

	"github.com/l2iterative/ll0/internal/ir"
)

// FileResult is one file's outcome within a batch: exactly one of Program
// or Err is set.
type FileResult struct {
	Path    string
	Program *ir.Program
	Err     error
	Elapsed time.Duration
}

// BatchResult aggregates RunBatch's per-file outcomes. It always carries
// exactly len(paths) entries, in no particular order, regardless of how
// many files failed: a malformed file is recorded, not dropped.
type BatchResult struct {
	mu      sync.Mutex
	results []FileResult
}

// Add records one file's outcome. Exported so a caller driving its own
// worker loop (e.g. a resumed batch skipping already-completed paths) can
// reuse the same aggregator.
func (b *BatchResult) Add(r FileResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, r)
}

// Results returns a copy of every recorded outcome.
func (b *BatchResult) Results() []FileResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]FileResult, len(b.results))
	copy(out, b.results)
	return out
}

// Failed returns the subset of results whose Err is non-nil.
func (b *BatchResult) Failed() []FileResult {
	var out []FileResult
	for _, r := range b.Results() {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// RunBatch distributes DecompileFile across a worker pool, numWorkers
// goroutines consuming from one closed channel of paths exactly as the teacher's
// WorkerPool.RunTasks does. A single file's decode error is recorded
// against that file in the returned BatchResult rather than aborting the
// batch: sibling in-flight files keep running.
func RunBatch(paths []string, opts Options, numWorkers int) *BatchResult {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ch := make(chan string, len(paths))
	for _, p := range paths {
		ch <- p
	}
	close(ch)

	result := &BatchResult{}
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range ch {
				start := time.Now()
				prog, err := DecompileFile(path, opts)
				if err != nil {
					opts.logger().Error("decompile failed", "path", path, "error", err)
				}
				result.Add(FileResult{Path: path, Program: prog, Err: err, Elapsed: time.Since(start)})
			}
		}()
	}
	wg.Wait()

	return result
}
