package router

// maxSessionIdAllocAttempts bounds the number of wrap-around retries the
// router performs when searching for an unused router-assigned session
// id. This prevents livelock when the session table is dense; callers
// must be prepared for an InvalidSessionId result.
const maxSessionIdAllocAttempts = 10

// sessionIdAllocator hands out router-assigned session ids in the
// monotonic range [0, reserved). Unlike a randomized allocator it is
// entirely deterministic: it remembers only the next candidate to try and
// relies on the caller to report whether that candidate is already in
// use. It must be called with the router's mutex held.
type sessionIdAllocator struct {
	next     SessionId
	reserved SessionId
}

func newSessionIdAllocator(reserved SessionId) *sessionIdAllocator {
	return &sessionIdAllocator{reserved: reserved}
}

// allocate returns the next unused session id in [0, reserved), using
// inUse to test candidates, wrapping back to 0 when next reaches reserved.
// It gives up after maxSessionIdAllocAttempts candidates.
func (a *sessionIdAllocator) allocate(inUse func(SessionId) bool) (SessionId, bool) {
	if a.reserved == 0 {
		return InvalidSessionId, false
	}

	candidate := a.next
	for attempt := 0; attempt < maxSessionIdAllocAttempts; attempt++ {
		if candidate >= a.reserved {
			candidate = 0
		}
		if !inUse(candidate) {
			a.next = candidate + 1
			return candidate, true
		}
		candidate++
	}
	return InvalidSessionId, false
}
