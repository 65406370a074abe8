package history

import (
	"sync"
	"time"

	"rockguard/internal/model"
)

// Store keeps the most recent report records in memory, oldest first.
type Store struct {
	mu    sync.RWMutex
	buf   []model.ReportRecord
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{limit: limit}
}

func (s *Store) Add(rec model.ReportRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, rec)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = rec
}

// List returns up to limit of the newest records; limit <= 0 means all.
func (s *Store) List(limit int) []model.ReportRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.ReportRecord, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.ReportRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ReportRecord, 0)
	for _, rec := range s.buf {
		if !rec.GeneratedAt.Before(ts) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) Latest() (model.ReportRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buf) == 0 {
		return model.ReportRecord{}, false
	}
	return s.buf[len(s.buf)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
