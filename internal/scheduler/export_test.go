package scheduler

// BusyLen reports how many alert ids are marked as under evaluation.
func (s *Scheduler) BusyLen() int {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	return len(s.busy)
}
