package contact

import "sync"

// senderLocks hands out one mutex per sender. Entries are dropped when the
// last holder unlocks, so the map only holds senders with a submission in
// flight.
type senderLocks struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	sync.Mutex
	refs int
}

// lock blocks until sender's mutex is held and returns its release func.
func (s *senderLocks) lock(sender string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*senderLock)
	}
	l, ok := s.locks[sender]
	if !ok {
		l = &senderLock{}
		s.locks[sender] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sender)
		}
		s.mu.Unlock()
	}
}
