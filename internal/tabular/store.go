package tabular

import (
	"tabchat/domain/core"
	"tabchat/domain/table"
)

// Store holds one session's dataset lineage: the original upload plus every
// derived view, newest last. Datasets are immutable, so keeping the lineage
// gives history and undo for free and keeps snapshots safe for in-flight
// exports.
type Store struct {
	views []*table.Dataset
}

// NewStore creates an empty store; Load must be called before any view access
func NewStore() *Store {
	return &Store{}
}

// Load resets the store around a freshly parsed dataset
func (s *Store) Load(ds *table.Dataset) {
	s.views = []*table.Dataset{ds}
}

// Loaded reports whether a dataset has been uploaded
func (s *Store) Loaded() bool {
	return len(s.views) > 0
}

// CurrentView returns the latest derived (or original) dataset
func (s *Store) CurrentView() (*table.Dataset, error) {
	if len(s.views) == 0 {
		return nil, core.ErrNoDataset
	}
	return s.views[len(s.views)-1], nil
}

// Original returns the dataset as it was uploaded
func (s *Store) Original() (*table.Dataset, error) {
	if len(s.views) == 0 {
		return nil, core.ErrNoDataset
	}
	return s.views[0], nil
}

// Push records a new derived view as current
func (s *Store) Push(ds *table.Dataset) {
	s.views = append(s.views, ds)
}

// Reset drops every derived view, restoring the original upload
func (s *Store) Reset() error {
	if len(s.views) == 0 {
		return core.ErrNoDataset
	}
	s.views = s.views[:1]
	return nil
}

// Undo drops the latest derived view. Undoing past the original is a no-op.
func (s *Store) Undo() {
	if len(s.views) > 1 {
		s.views = s.views[:len(s.views)-1]
	}
}

// Depth returns how many views the lineage holds
func (s *Store) Depth() int {
	return len(s.views)
}

// Schema returns the current view's schema for NLU context
func (s *Store) Schema() []table.ColumnSchema {
	if len(s.views) == 0 {
		return nil
	}
	return s.views[len(s.views)-1].Schema()
}
