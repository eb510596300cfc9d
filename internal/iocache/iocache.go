// Package iocache persists performance snapshots of the data cache to SQL backends.
package iocache

import (
	"sync"

	"github.com/huangsam/dashcache/internal/contract"
)

// SnapshotStoreManager owns the process-wide SnapshotStore.
type SnapshotStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	snapshots    contract.SnapshotStore
}

var _ contract.SnapshotManager = &SnapshotStoreManager{} // Compile-time check

// GetSnapshotStore returns the snapshot store, or nil before InitStores.
func (mgr *SnapshotStoreManager) GetSnapshotStore() contract.SnapshotStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.snapshots
}
