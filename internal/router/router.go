package router

import (
	"fmt"
	"log/slog"
	"sync"
)

// Option configures a Router at construction time.
type Option func(*Router)

// WithMaxHubs bounds the number of hubs the router will accept. The zero
// value (the default) means unbounded.
func WithMaxHubs(n int) Option {
	return func(r *Router) { r.maxHubs = n }
}

// WithMaxSessions bounds the number of sessions the router will accept.
// The zero value (the default) means unbounded.
func WithMaxSessions(n int) Option {
	return func(r *Router) { r.maxSessions = n }
}

// WithReservedSessionId overrides the default partition point between
// router-assigned and caller-assigned session ids.
func WithReservedSessionId(reserved SessionId) Option {
	return func(r *Router) {
		r.reserved = reserved
		r.sessionAlloc = newSessionIdAllocator(reserved)
	}
}

// WithMetrics attaches a MetricsReporter the router updates as hubs and
// sessions come and go.
func WithMetrics(m MetricsReporter) Option {
	return func(r *Router) { r.metrics = m }
}

type hubRecord struct {
	info     HubInfo
	callback HubCallback
}

// Router is the single authoritative broker for hub registration, session
// negotiation, and message dispatch. All exported methods are safe for
// concurrent use by multiple goroutines.
type Router struct {
	mu       sync.RWMutex
	hubs     map[HubId]*hubRecord
	hubNames map[string]HubId
	sessions map[SessionId]*Session

	sessionAlloc *sessionIdAllocator
	reserved     SessionId
	maxHubs      int
	maxSessions  int

	logger  *slog.Logger
	metrics MetricsReporter
}

// NewRouter constructs a Router. logger must not be nil.
func NewRouter(logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		hubs:     make(map[HubId]*hubRecord),
		hubNames: make(map[string]HubId),
		sessions: make(map[SessionId]*Session),
		reserved: DefaultReservedSessionId,
		logger:   logger.With(slog.String("component", "router")),
		metrics:  noopMetrics{},
	}
	r.sessionAlloc = newSessionIdAllocator(r.reserved)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterHub registers a new hub and returns a HubHandle bound to it.
// Fails if the hub table is full, the name collides, or the id collides.
// On success, OnHubRegistered(info) is emitted to every other registered
// hub's callback before RegisterHub returns.
func (r *Router) RegisterHub(id HubId, name string, callback HubCallback) (*HubHandle, error) {
	r.mu.Lock()
	if r.maxHubs > 0 && len(r.hubs) >= r.maxHubs {
		r.mu.Unlock()
		return nil, ErrHubTableFull
	}
	if _, exists := r.hubNames[name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrHubNameCollision, name)
	}
	if _, exists := r.hubs[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrHubIdCollision, id)
	}

	info := HubInfo{Id: id, Name: name}
	r.hubs[id] = &hubRecord{info: info, callback: callback}
	r.hubNames[name] = id

	others := make([]HubCallback, 0, len(r.hubs))
	for otherId, rec := range r.hubs {
		if otherId != id {
			others = append(others, rec.callback)
		}
	}
	hubCount := len(r.hubs)
	r.mu.Unlock()

	r.metrics.SetHubCount(hubCount)
	r.logger.Info("hub registered", slog.Uint64("hub_id", uint64(id)), slog.String("name", name))

	for _, cb := range others {
		cb.OnHubRegistered(info)
	}

	return &HubHandle{router: r, hubId: id}, nil
}

// UnregisterHub removes hub id from the router. Every session touching id
// is closed with ReasonHubReset and the surviving endpoint's hub is
// notified, followed by OnHubUnregistered(id) on every remaining hub.
func (r *Router) UnregisterHub(id HubId) {
	r.mu.Lock()
	rec, exists := r.hubs[id]
	if !exists {
		r.mu.Unlock()
		return
	}
	delete(r.hubs, id)
	delete(r.hubNames, rec.info.Name)

	var closed []Session
	for sid, s := range r.sessions {
		if s.hasEndpointOnHub(id) {
			closed = append(closed, *s)
			delete(r.sessions, sid)
		}
	}

	remaining := r.snapshotAllCallbacksLocked()
	hubCount := len(r.hubs)
	sessionCount := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetHubCount(hubCount)
	r.metrics.SetSessionCount(sessionCount)
	r.logger.Info("hub unregistered", slog.Uint64("hub_id", uint64(id)))

	for _, s := range closed {
		r.metrics.IncSessionClosed(ReasonHubReset)
		other := s.Initiator
		if other.HubId == id {
			other = s.Peer
		}
		if other.HubId == id {
			// Self-loop entirely on the removed hub: no surviving side
			// to notify.
			continue
		}
		if cb, ok := r.lookupCallback(other.HubId); ok {
			cb.OnSessionClosed(s, ReasonHubReset)
		}
	}
	for _, cb := range remaining {
		cb.OnHubUnregistered(id)
	}
}

// OpenSession negotiates a new (or returns an existing equivalent) session
// between (fromHub, fromEndpoint) and (toHub, toEndpoint), optionally
// qualified by a service descriptor. sessionId, when non-nil, must fall in
// the caller-assigned reserved range.
func (r *Router) OpenSession(fromHub HubId, fromEndpoint EndpointId, toHub HubId, toEndpoint EndpointId, service *string, sessionId *SessionId) (SessionId, error) {
	if sessionId != nil && (*sessionId == InvalidSessionId || *sessionId < r.reservedSessionId()) {
		return InvalidSessionId, ErrSessionIdOutOfRange
	}

	fromCb, ok := r.lookupCallback(fromHub)
	if !ok {
		return InvalidSessionId, fmt.Errorf("%w: from hub %d", ErrHubNotFound, fromHub)
	}
	toCb, ok := r.lookupCallback(toHub)
	if !ok {
		return InvalidSessionId, fmt.Errorf("%w: to hub %d", ErrHubNotFound, toHub)
	}

	if _, ok := fromCb.GetEndpointInfo(fromEndpoint); !ok {
		return InvalidSessionId, fmt.Errorf("%w: endpoint %d on hub %d", ErrEndpointNotFound, fromEndpoint, fromHub)
	}
	if _, ok := toCb.GetEndpointInfo(toEndpoint); !ok {
		return InvalidSessionId, fmt.Errorf("%w: endpoint %d on hub %d", ErrEndpointNotFound, toEndpoint, toHub)
	}

	if service != nil && !toCb.DoesEndpointHaveService(toEndpoint, *service) {
		return InvalidSessionId, fmt.Errorf("%w: %q on endpoint %d", ErrServiceNotFound, *service, toEndpoint)
	}

	candidate := Session{
		Initiator: Endpoint{HubId: fromHub, EndpointId: fromEndpoint},
		Peer:      Endpoint{HubId: toHub, EndpointId: toEndpoint},
	}
	if service != nil {
		candidate.HasServiceDesc = true
		candidate.ServiceDescriptor = *service
	}

	r.mu.Lock()
	for _, s := range r.sessions {
		if s.isEquivalent(candidate) {
			id := s.Id
			r.mu.Unlock()
			return id, nil
		}
	}

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return InvalidSessionId, ErrSessionTableFull
	}

	var id SessionId
	if sessionId != nil {
		if _, exists := r.sessions[*sessionId]; exists {
			r.mu.Unlock()
			return InvalidSessionId, fmt.Errorf("%w: %d", ErrSessionIdInUse, *sessionId)
		}
		id = *sessionId
	} else {
		allocated, ok := r.sessionAlloc.allocate(func(candidate SessionId) bool {
			_, inUse := r.sessions[candidate]
			return inUse
		})
		if !ok {
			r.mu.Unlock()
			return InvalidSessionId, ErrSessionIdExhausted
		}
		id = allocated
	}

	candidate.Id = id
	r.sessions[id] = &candidate
	sessionCount := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessionCount(sessionCount)
	r.logger.Debug("session opened (pending)",
		slog.Uint64("session_id", uint64(id)),
		slog.String("initiator", candidate.Initiator.String()),
		slog.String("peer", candidate.Peer.String()))

	toCb.OnSessionOpenRequest(candidate)

	return id, nil
}

// CloseSession removes session id from the table, provided fromHub owns
// one of its endpoints, and notifies the surviving hub(s) with
// OnSessionClosed(reason). The notification fires exactly once per
// distinct hub even for a self-loop session.
func (r *Router) CloseSession(fromHub HubId, id SessionId, reason Reason) error {
	r.mu.Lock()
	s, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if !s.hasEndpointOnHub(fromHub) {
		r.mu.Unlock()
		return fmt.Errorf("%w: hub %d is not a member of session %d", ErrSenderNotSessionMember, fromHub, id)
	}
	session := *s
	delete(r.sessions, id)

	initiatorCb, _ := r.lookupCallbackLocked(session.Initiator.HubId)
	peerCb, _ := r.lookupCallbackLocked(session.Peer.HubId)
	sessionCount := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessionCount(sessionCount)
	r.metrics.IncSessionClosed(reason)
	r.logger.Debug("session closed", slog.Uint64("session_id", uint64(id)), slog.String("reason", reason.String()))

	r.notifyClosed(session, reason, initiatorCb, peerCb)
	return nil
}

// OnSessionOpenComplete acknowledges session id, transitioning it to
// active and notifying both hubs with OnSessionOpened. A second ack on an
// already-active session is a no-op: no duplicate OnSessionOpened fires.
func (r *Router) OnSessionOpenComplete(fromHub HubId, id SessionId) error {
	r.mu.Lock()
	s, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if !s.hasEndpointOnHub(fromHub) {
		r.mu.Unlock()
		return fmt.Errorf("%w: hub %d is not a member of session %d", ErrSenderNotSessionMember, fromHub, id)
	}
	if s.Active {
		r.mu.Unlock()
		return nil
	}
	s.Active = true
	session := *s

	initiatorCb, _ := r.lookupCallbackLocked(session.Initiator.HubId)
	peerCb, _ := r.lookupCallbackLocked(session.Peer.HubId)
	r.mu.Unlock()

	r.metrics.IncSessionOpened()
	r.logger.Debug("session acknowledged", slog.Uint64("session_id", uint64(id)))

	r.notifyOpened(session, initiatorCb, peerCb)
	return nil
}

// SendMessage routes payload within session id from fromEndpoint (which
// may be the zero EndpointId, meaning "infer it"), returning false if the
// receiver's OnMessageReceived returned false — in which case the session
// is also closed with ReasonUnspecified. A recipient endpoint that its hub
// no longer reports yields ErrEndpointNotFound without closing the session.
func (r *Router) SendMessage(fromHub HubId, fromEndpoint EndpointId, id SessionId, payload []byte, messageType, permissions uint32) (bool, error) {
	r.mu.RLock()
	s, exists := r.sessions[id]
	if !exists {
		r.mu.RUnlock()
		return false, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if !s.Active {
		r.mu.RUnlock()
		return false, ErrSessionNotActive
	}

	sender := Endpoint{HubId: fromHub, EndpointId: fromEndpoint}
	if fromEndpoint == 0 {
		onInitiatorHub := s.Initiator.HubId == fromHub
		onPeerHub := s.Peer.HubId == fromHub
		switch {
		case onInitiatorHub && onPeerHub:
			r.mu.RUnlock()
			return false, ErrAmbiguousSender
		case onInitiatorHub:
			sender = s.Initiator
		case onPeerHub:
			sender = s.Peer
		default:
			r.mu.RUnlock()
			return false, ErrSenderNotSessionMember
		}
	}

	recipient, ok := s.otherEndpoint(sender)
	if !ok {
		r.mu.RUnlock()
		return false, fmt.Errorf("%w: %s", ErrSenderNotSessionMember, sender)
	}
	sentByInitiator := sender == s.Initiator
	session := *s
	recipientCb, _ := r.lookupCallbackLocked(recipient.HubId)
	r.mu.RUnlock()

	if recipientCb == nil {
		return false, fmt.Errorf("%w: %d", ErrHubNotFound, recipient.HubId)
	}
	if _, ok := recipientCb.GetEndpointInfo(recipient.EndpointId); !ok {
		return false, fmt.Errorf("%w: %s", ErrEndpointNotFound, recipient)
	}

	ok = recipientCb.OnMessageReceived(payload, messageType, permissions, session, sentByInitiator)
	if ok {
		r.metrics.IncMessagesRouted()
		return true, nil
	}

	r.metrics.IncMessagesDropped()
	_ = r.CloseSession(fromHub, id, ReasonUnspecified)
	return false, nil
}

// GetSession returns a copy of session id, provided fromHub is a member of
// it.
func (r *Router) GetSession(fromHub HubId, id SessionId) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[id]
	if !exists || !s.hasEndpointOnHub(fromHub) {
		return Session{}, false
	}
	return *s, true
}

// GetEndpointInfo proxies to hub's callback.
func (r *Router) GetEndpointInfo(hub HubId, endpoint EndpointId) (EndpointInfo, bool) {
	cb, ok := r.lookupCallback(hub)
	if !ok {
		return EndpointInfo{}, false
	}
	return cb.GetEndpointInfo(endpoint)
}

// GetEndpointForService searches hub (or, if hub is 0, every registered
// hub) for an endpoint exposing descriptor.
func (r *Router) GetEndpointForService(hub HubId, descriptor string) (Endpoint, bool) {
	if hub != 0 {
		cb, ok := r.lookupCallback(hub)
		if !ok {
			return Endpoint{}, false
		}
		if eid, ok := cb.GetEndpointForService(descriptor); ok {
			return Endpoint{HubId: hub, EndpointId: eid}, true
		}
		return Endpoint{}, false
	}

	for _, h := range r.snapshotAllHubs() {
		if eid, ok := h.callback.GetEndpointForService(descriptor); ok {
			return Endpoint{HubId: h.info.Id, EndpointId: eid}, true
		}
	}
	return Endpoint{}, false
}

// DoesEndpointHaveService proxies to hub's callback.
func (r *Router) DoesEndpointHaveService(hub HubId, endpoint EndpointId, descriptor string) bool {
	cb, ok := r.lookupCallback(hub)
	if !ok {
		return false
	}
	return cb.DoesEndpointHaveService(endpoint, descriptor)
}

// ForEachEndpointOfHub proxies to hub's callback.
func (r *Router) ForEachEndpointOfHub(hub HubId, fn func(EndpointInfo) bool) {
	cb, ok := r.lookupCallback(hub)
	if !ok {
		return
	}
	cb.ForEachEndpoint(fn)
}

// ForEachEndpoint invokes fn for every endpoint on every registered hub,
// stopping early if fn returns false.
func (r *Router) ForEachEndpoint(fn func(HubId, EndpointInfo) bool) {
	for _, h := range r.snapshotAllHubs() {
		keepGoing := true
		h.callback.ForEachEndpoint(func(info EndpointInfo) bool {
			if !fn(h.info.Id, info) {
				keepGoing = false
				return false
			}
			return true
		})
		if !keepGoing {
			return
		}
	}
}

// ForEachService invokes fn for every (hub, endpoint, service) triple
// across all registered hubs, stopping early if fn returns false.
func (r *Router) ForEachService(fn func(HubId, EndpointInfo, ServiceInfo) bool) {
	for _, h := range r.snapshotAllHubs() {
		keepGoing := true
		h.callback.ForEachService(func(ep EndpointInfo, svc ServiceInfo) bool {
			if !fn(h.info.Id, ep, svc) {
				keepGoing = false
				return false
			}
			return true
		})
		if !keepGoing {
			return
		}
	}
}

// ForEachMessageHub invokes fn for every registered hub's HubInfo,
// stopping early if fn returns false.
func (r *Router) ForEachMessageHub(fn func(HubInfo) bool) {
	for _, h := range r.snapshotAllHubs() {
		if !fn(h.info) {
			return
		}
	}
}

// RegisterEndpoint notifies every hub other than hub that endpoint has
// registered on it. The caller (a hub manager) is responsible for having
// already updated its own endpoint bookkeeping before calling this.
func (r *Router) RegisterEndpoint(hub HubId, endpoint EndpointId) error {
	if _, ok := r.lookupCallback(hub); !ok {
		return fmt.Errorf("%w: %d", ErrHubNotFound, hub)
	}
	for _, cb := range r.snapshotOtherCallbacks(hub) {
		cb.OnEndpointRegistered(hub, endpoint)
	}
	return nil
}

// UnregisterEndpoint notifies every hub other than hub that endpoint has
// unregistered from it.
func (r *Router) UnregisterEndpoint(hub HubId, endpoint EndpointId) error {
	if _, ok := r.lookupCallback(hub); !ok {
		return fmt.Errorf("%w: %d", ErrHubNotFound, hub)
	}
	for _, cb := range r.snapshotOtherCallbacks(hub) {
		cb.OnEndpointUnregistered(hub, endpoint)
	}
	return nil
}

func (r *Router) reservedSessionId() SessionId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reserved
}

func (r *Router) lookupCallback(hub HubId) (HubCallback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupCallbackLocked(hub)
}

func (r *Router) lookupCallbackLocked(hub HubId) (HubCallback, bool) {
	rec, ok := r.hubs[hub]
	if !ok {
		return nil, false
	}
	return rec.callback, true
}

// snapshotOtherCallbacks returns every registered hub's callback
// except exclude's, acquiring the lock itself.
func (r *Router) snapshotOtherCallbacks(exclude HubId) []HubCallback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HubCallback, 0, len(r.hubs))
	for id, rec := range r.hubs {
		if id == exclude {
			continue
		}
		out = append(out, rec.callback)
	}
	return out
}

func (r *Router) snapshotAllCallbacksLocked() []HubCallback {
	out := make([]HubCallback, 0, len(r.hubs))
	for _, rec := range r.hubs {
		out = append(out, rec.callback)
	}
	return out
}

func (r *Router) snapshotAllHubs() []hubRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hubRecord, 0, len(r.hubs))
	for _, rec := range r.hubs {
		out = append(out, *rec)
	}
	return out
}

// notifyClosed invokes OnSessionClosed on both hubs' callbacks, once each,
// deduplicating the self-loop case where both endpoints share a hub.
func (r *Router) notifyClosed(session Session, reason Reason, initiatorCb, peerCb HubCallback) {
	if initiatorCb != nil {
		initiatorCb.OnSessionClosed(session, reason)
	}
	if peerCb != nil && !sameCallback(initiatorCb, peerCb) {
		peerCb.OnSessionClosed(session, reason)
	}
}

// notifyOpened invokes OnSessionOpened on both hubs' callbacks, once each,
// deduplicating the self-loop case.
func (r *Router) notifyOpened(session Session, initiatorCb, peerCb HubCallback) {
	if initiatorCb != nil {
		initiatorCb.OnSessionOpened(session)
	}
	if peerCb != nil && !sameCallback(initiatorCb, peerCb) {
		peerCb.OnSessionOpened(session)
	}
}

// sameCallback reports whether a and b are the same underlying callback,
// i.e. the session is a self-loop on one hub. Interface equality is
// sufficient here since HubCallback implementations are expected to be
// pointer-shaped, exactly as the original's `initiatorCallback !=
// peerCallback` pointer comparison.
func sameCallback(a, b HubCallback) bool {
	return a == b
}
