package iocache

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// MockSnapshotManager is a mock implementation of SnapshotManager for testing.
type MockSnapshotManager struct {
	mock.Mock
}

var _ contract.SnapshotManager = &MockSnapshotManager{} // Compile-time check

// GetSnapshotStore implements the SnapshotManager interface.
func (m *MockSnapshotManager) GetSnapshotStore() contract.SnapshotStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.SnapshotStore)
	return store
}

// MockSnapshotStore is a mock implementation of SnapshotStore for testing.
type MockSnapshotStore struct {
	mock.Mock
}

var _ contract.SnapshotStore = &MockSnapshotStore{} // Compile-time check

// BeginRun implements the SnapshotStore interface.
func (m *MockSnapshotStore) BeginRun(command string, startTime time.Time, configParams map[string]any) (int64, error) {
	args := m.Called(command, startTime, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// RecordSnapshot implements the SnapshotStore interface.
func (m *MockSnapshotStore) RecordSnapshot(runID int64, endTime time.Time, snap schema.PerfSnapshot) error {
	args := m.Called(runID, endTime, snap)
	return args.Error(0)
}

// GetStatus implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetStatus() (schema.SnapshotStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.SnapshotStatus), args.Error(1)
}

// GetAllRuns implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetAllRuns() ([]schema.SnapshotRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.SnapshotRunRecord)
	return runs, args.Error(1)
}

// GetAllLabelStats implements the SnapshotStore interface.
func (m *MockSnapshotStore) GetAllLabelStats() ([]schema.LabelStatsRecord, error) {
	args := m.Called()
	labels, _ := args.Get(0).([]schema.LabelStatsRecord)
	return labels, args.Error(1)
}

// Close implements the SnapshotStore interface.
func (m *MockSnapshotStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
