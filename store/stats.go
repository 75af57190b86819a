package store

// Stats counts entries by condition.
type Stats struct {
	Entries  int
	Loading  int
	Errors   int
	Stale    int
	Observed int // entries with at least one observer
}

// Stats returns current entry counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Entries: len(s.entries)}
	for id, e := range s.entries {
		switch e.state {
		case StateLoading:
			st.Loading++
		case StateError:
			st.Errors++
		}
		if e.stale {
			st.Stale++
		}
		if len(s.observers[id]) > 0 {
			st.Observed++
		}
	}
	return st
}
