// Package hashing computes content digests for imported files. Digests are
// streamed SHA-256 rendered as 64 hex characters; identical bytes always
// yield the identical digest regardless of filename or location. A bounded
// worker pool hashes batches over channels so one slow or unreadable file
// never stalls the rest of the batch.
package hashing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// DigestLength is the fixed width of a rendered content digest.
const DigestLength = 64

// Hash streams path through SHA-256 and returns the hex digest.
func Hash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash open: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash read %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Result carries the outcome for a single file. Exactly one of Digest or Err
// is set.
type Result struct {
	Path   string
	Digest string
	Err    error
}

// Pool hashes files on a fixed number of worker goroutines. Paths go in over
// a channel and results come back over another; the orchestrator and workers
// share no mutable state.
type Pool struct {
	workers int
}

// NewPool returns a pool with the given parallelism (minimum 1).
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// HashAll digests every path and returns results keyed by path. Per-file
// failures are recorded in the result, not returned; the only error case is
// context cancellation.
func (p *Pool) HashAll(ctx context.Context, paths []string) (map[string]Result, error) {
	results := make(map[string]Result, len(paths))
	for result := range p.Stream(ctx, paths) {
		results[result.Path] = result
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Stream hashes paths concurrently and emits one Result per input path. The
// returned channel closes once all work finishes or the context is cancelled.
func (p *Pool) Stream(ctx context.Context, paths []string) <-chan Result {
	requests := make(chan string)
	results := make(chan Result, p.workers)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			for path := range requests {
				digest, err := Hash(path)
				select {
				case results <- Result{Path: path, Digest: digest, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(requests)
		for _, path := range paths {
			select {
			case requests <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
