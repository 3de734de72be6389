package orchestrator

import (
	"sync"

	"voting-token-client/internal/observability"
)

// inFlight tracks action:target keys with an outstanding intent.
type inFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{keys: make(map[string]struct{})}
}

func (f *inFlight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	observability.AddInFlight(1)
	return true
}

func (f *inFlight) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		delete(f.keys, key)
		observability.AddInFlight(-1)
	}
}

// InFlight reports whether an intent with key is outstanding.
func (o *Orchestrator) InFlight(key string) bool {
	o.inFlight.mu.Lock()
	defer o.inFlight.mu.Unlock()
	_, busy := o.inFlight.keys[key]
	return busy
}
