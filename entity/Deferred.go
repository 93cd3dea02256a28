package entity

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrDestroyed is the failure a mutator on a destroyed entity resolves with
var ErrDestroyed = errors.New("entity is destroyed")

// Deferred is the result of an asynchronous delivery. It resolves exactly
// once, when the targeted connection set has flushed (or failed) the packet.
type Deferred struct {
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	err      error
}

// NewDeferred creates an unresolved Deferred
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// ResolvedDeferred creates a Deferred already resolved with err
func ResolvedDeferred(err error) *Deferred {
	d := NewDeferred()
	d.Resolve(err)
	return d
}

func destroyedDeferred() *Deferred {
	return ResolvedDeferred(ErrDestroyed)
}

// Resolve settles the Deferred. Only the first call takes effect.
func (d *Deferred) Resolve(err error) {
	d.mu.Lock()
	if d.resolved {
		d.mu.Unlock()
		return
	}
	d.resolved = true
	d.err = err
	d.mu.Unlock()
	close(d.done)
}

// Done is closed once the Deferred resolves
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until resolution and returns the delivery error, if any.
// Never call it from the game goroutine: deliveries resolve on connection
// writer goroutines.
func (d *Deferred) Wait() error {
	<-d.done
	return d.err
}

// ResolveFrom settles d with src's eventual result
func (d *Deferred) ResolveFrom(src *Deferred) {
	go func() {
		d.Resolve(src.Wait())
	}()
}

// Err returns the resolution error, or nil while still pending
func (d *Deferred) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// CombineDeferreds aggregates per-connection deliveries into one result.
// Individual failures do not fail the others; the aggregate reports how many
// deliveries failed.
func CombineDeferreds(defs []*Deferred) *Deferred {
	if len(defs) == 0 {
		return ResolvedDeferred(nil)
	}

	agg := NewDeferred()
	go func() {
		nfail := 0
		var firstErr error
		for _, d := range defs {
			if err := d.Wait(); err != nil {
				nfail += 1
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if nfail == 0 {
			agg.Resolve(nil)
		} else {
			agg.Resolve(errors.Wrapf(firstErr, "%d of %d deliveries failed", nfail, len(defs)))
		}
	}()
	return agg
}
