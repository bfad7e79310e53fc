package txlog

import "sync"

// Display is the process-wide "currently highlighted transaction" slot,
// written once per successful swap. Subscribers receive every update;
// sends never block the writer.
type Display struct {
	mu    sync.RWMutex
	store *Store
	hash  string
	subs  []chan string
}

// NewDisplay wraps an optional store for persistence across runs. A nil
// store keeps the slot in-memory only.
func NewDisplay(store *Store) *Display {
	d := &Display{store: store}
	if store != nil {
		if hash, ok, err := store.highlight(); err == nil && ok {
			d.hash = hash
		}
	}
	return d
}

func (d *Display) Set(txHash string) error {
	d.mu.Lock()
	d.hash = txHash
	subs := make([]chan string, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- txHash:
		default:
		}
	}
	if d.store != nil {
		return d.store.setHighlight(txHash)
	}
	return nil
}

func (d *Display) Current() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hash, d.hash != ""
}

// Subscribe returns a buffered channel that receives subsequent updates.
func (d *Display) Subscribe() <-chan string {
	ch := make(chan string, 8)
	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()
	return ch
}
