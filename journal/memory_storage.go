package journal

import (
	"sort"
	"sync"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	max      int
	sessions map[string][]*Record
	stats    map[string]*Stats
}

// NewMemoryStorage keeps at most max records per profile; stats count every
// session ever recorded.
func NewMemoryStorage(max int) *MemoryStorage {
	if max <= 0 {
		max = DefaultRetention
	}
	return &MemoryStorage{
		max:      max,
		sessions: make(map[string][]*Record),
		stats:    make(map[string]*Stats),
	}
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Record(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	cp.Faults = append([]string{}, rec.Faults...)
	cp.Flags = append([]string{}, rec.Flags...)

	list := append(m.sessions[rec.Profile], &cp)
	if len(list) > m.max {
		list = list[len(list)-m.max:]
	}
	m.sessions[rec.Profile] = list

	st, ok := m.stats[rec.Profile]
	if !ok {
		st = newStats(rec.Profile)
		m.stats[rec.Profile] = st
	}
	st.add(&cp)
	return nil
}

func (m *MemoryStorage) Sessions(profile string, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.sessions[profile]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]*Record, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStorage) Stats(profile string) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := newStats(profile)
	st, ok := m.stats[profile]
	if !ok {
		return out, nil
	}
	out.Sessions = st.Sessions
	out.Uploaded = st.Uploaded
	for k, v := range st.Terminations {
		out.Terminations[k] = v
	}
	for k, v := range st.Faults {
		out.Faults[k] = v
	}
	return out, nil
}

func (m *MemoryStorage) Profiles() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]string, 0, len(m.stats))
	for p := range m.stats {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	return profiles, nil
}
