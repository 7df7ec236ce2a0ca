package indexer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Build is a handle on one background rebuild.
type Build struct {
	ID        string
	StartedAt time.Time

	done  chan struct{}
	stats *Statistics
	err   error
}

func newBuild() *Build {
	return &Build{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// finishedBuild returns a Build that has already failed with err.
func finishedBuild(err error) *Build {
	b := &Build{StartedAt: time.Now(), done: make(chan struct{})}
	b.finish(nil, err)
	return b
}

func (b *Build) finish(stats *Statistics, err error) {
	b.stats = stats
	b.err = err
	close(b.done)
}

// Done is closed when the build has finished.
func (b *Build) Done() <-chan struct{} {
	return b.done
}

// Finished reports whether the build has finished.
func (b *Build) Finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the build finishes or ctx is done. Giving up on ctx does
// not stop the build.
func (b *Build) Wait(ctx context.Context) (*Statistics, error) {
	select {
	case <-b.done:
		return b.stats, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the build error once finished, nil while it runs.
func (b *Build) Err() error {
	if !b.Finished() {
		return nil
	}
	return b.err
}
