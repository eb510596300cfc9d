package store

import "sync"

var (
	defaultStore *Store
	defaultMu    sync.Mutex
)

// Default returns the process-wide store, creating it on first use.
func Default() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = New()
	}
	return defaultStore
}

// SetDefault replaces the process-wide store.
func SetDefault(s *Store) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = s
}

// ResetDefault drops the process-wide store so the next Default call starts empty.
func ResetDefault() {
	SetDefault(nil)
}
