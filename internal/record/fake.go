package record

import (
	"sync"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// Fake is an in-memory recorder for tests. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	records []logic.Snapshot
	err     error
	panicOn string
}

// FailWith makes every following Append return err. Failed appends are not
// stored.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// PanicWith makes every following Append panic with msg; empty clears it.
func (f *Fake) PanicWith(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicOn = msg
}

// Append stores a copy of s.
func (f *Fake) Append(s logic.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != "" {
		panic(f.panicOn)
	}
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, s)
	return nil
}

// Records returns a copy of what was appended.
func (f *Fake) Records() []logic.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Snapshot(nil), f.records...)
}

// Len returns the number of stored records.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Discard is a Recorder that keeps nothing.
type Discard struct{}

// Append does nothing.
func (Discard) Append(logic.Snapshot) error { return nil }
