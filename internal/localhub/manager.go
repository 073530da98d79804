package localhub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

const (
	defaultAppEventBuffer = 64
	defaultTaskQueueSize  = 256
	defaultMaxFreeRecords = 16
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithAppEventBuffer sets the buffer size of each application's event
// channel. The default is 64.
func WithAppEventBuffer(n int) Option {
	return func(m *Manager) { m.appEventBuffer = n }
}

// WithMaxFreeRecords bounds the number of deferred message-free callbacks
// the manager holds before forcing the oldest to run. The default is 16.
func WithMaxFreeRecords(n int) Option {
	return func(m *Manager) { m.maxFreeRecords = n }
}

type publishedService struct {
	appID router.EndpointId
	info  router.ServiceInfo
}

type readySubscription struct {
	app      router.EndpointId
	hub      router.HubId
	endpoint router.EndpointId
	service  *string
}

func (s readySubscription) matchesTarget(hub router.HubId, endpoint router.EndpointId) bool {
	return s.hub == hub && s.endpoint != 0 && s.endpoint == endpoint
}

type messageFreeRecord struct {
	payload []byte
	free    func()
}

// Manager is the Local Hub Manager: it registers exactly one hub with the
// router on behalf of every in-process application, and runs a
// single-threaded event loop that owns the ready-event subscription table
// and the deferred message-free queue.
type Manager struct {
	r      *router.Router
	handle *router.HubHandle
	hubID  router.HubId
	logger *slog.Logger

	appEventBuffer int
	maxFreeRecords int

	mu            sync.Mutex
	endpointInfos map[router.EndpointId]router.EndpointInfo
	appChannels   map[router.EndpointId]chan AppEvent

	publishedServicesMu sync.Mutex
	publishedServices   []publishedService

	taskCh chan func()

	// readySubs and freeRecords are touched exclusively by the goroutine
	// running Run; no mutex guards them.
	readySubs   []readySubscription
	freeRecords []messageFreeRecord
}

// NewManager constructs a Manager and registers its hub with r under id and
// name. The returned Manager's Run method must be driven by a goroutine
// before any application-facing operation is called.
func NewManager(r *router.Router, id router.HubId, name string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		r:              r,
		hubID:          id,
		logger:         logger.With(slog.String("component", "localhub"), slog.String("hub", name)),
		appEventBuffer: defaultAppEventBuffer,
		maxFreeRecords: defaultMaxFreeRecords,
		endpointInfos:  make(map[router.EndpointId]router.EndpointInfo),
		appChannels:    make(map[router.EndpointId]chan AppEvent),
		taskCh:         make(chan func(), defaultTaskQueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}

	handle, err := r.RegisterHub(id, name, m)
	if err != nil {
		return nil, fmt.Errorf("localhub: register hub: %w", err)
	}
	m.handle = handle
	return m, nil
}

// Run drains the event loop until ctx is cancelled. Every mutation of the
// ready-event subscription table and the deferred free-record queue
// happens inside this loop, on this goroutine, by design: it's the only
// way those structures go unsynchronized without a data race.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-m.taskCh:
			task()
		default:
			if m.flushOneFreeRecord() {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case task := <-m.taskCh:
				task()
			}
		}
	}
}

func (m *Manager) postTask(fn func()) {
	select {
	case m.taskCh <- fn:
	default:
		m.logger.Warn("event loop task queue full, dropping task")
	}
}

// runOnEventLoop posts fn to the event loop and blocks until it has run,
// giving synchronous callers (application-facing methods) a way to touch
// event-loop-only state without taking a lock.
func (m *Manager) runOnEventLoop(fn func()) {
	done := make(chan struct{})
	m.postTask(func() {
		fn()
		close(done)
	})
	<-done
}

func (m *Manager) flushOneFreeRecord() bool {
	if len(m.freeRecords) == 0 {
		return false
	}
	rec := m.freeRecords[0]
	m.freeRecords = m.freeRecords[1:]
	rec.free()
	return true
}

// -------------------------------------------------------------------------
// Application-facing operations
// -------------------------------------------------------------------------

// RegisterEndpoint registers a new application endpoint on this hub and
// returns the channel it should read events from.
func (m *Manager) RegisterEndpoint(info router.EndpointInfo) (<-chan AppEvent, error) {
	m.mu.Lock()
	if _, exists := m.endpointInfos[info.Id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrEndpointAlreadyRegistered, info.Id)
	}
	ch := make(chan AppEvent, m.appEventBuffer)
	m.endpointInfos[info.Id] = info
	m.appChannels[info.Id] = ch
	m.mu.Unlock()

	if err := m.handle.RegisterEndpoint(info.Id); err != nil {
		m.mu.Lock()
		delete(m.endpointInfos, info.Id)
		delete(m.appChannels, info.Id)
		m.mu.Unlock()
		return nil, err
	}
	// The router fans registrations out only to other hubs, so this hub's
	// own subscribers are scanned here.
	m.postTask(func() { m.onEndpointReadyEvent(m.hubID, info.Id) })
	return ch, nil
}

// UnregisterEndpoint removes endpoint from this hub. Cleanup of its ready
// subscriptions and published services is deferred onto the event loop;
// the router-level unregister (which fans OnEndpointUnregistered out to
// every other hub) happens immediately, synchronously, before this
// returns.
func (m *Manager) UnregisterEndpoint(id router.EndpointId) error {
	m.mu.Lock()
	if _, exists := m.endpointInfos[id]; !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrEndpointNotRegistered, id)
	}
	delete(m.endpointInfos, id)
	delete(m.appChannels, id)
	m.mu.Unlock()

	m.postTask(func() { m.cleanupEndpointResources(id) })

	return m.handle.UnregisterEndpoint(id)
}

// cleanupEndpointResources drops every ready subscription and published
// service belonging to id. Event-loop only.
func (m *Manager) cleanupEndpointResources(id router.EndpointId) {
	kept := m.readySubs[:0]
	for _, s := range m.readySubs {
		if s.app != id {
			kept = append(kept, s)
		}
	}
	m.readySubs = kept

	m.publishedServicesMu.Lock()
	keptServices := m.publishedServices[:0]
	for _, s := range m.publishedServices {
		if s.appID != id {
			keptServices = append(keptServices, s)
		}
	}
	m.publishedServices = keptServices
	m.publishedServicesMu.Unlock()
}

// PublishServices registers services on behalf of appID. Legacy-format
// descriptors (reserved for the router's own nanoapp/service codec) and
// descriptors already published by any endpoint are rejected.
func (m *Manager) PublishServices(appID router.EndpointId, services []router.ServiceInfo) error {
	if len(services) == 0 {
		return ErrNoServicesGiven
	}

	m.publishedServicesMu.Lock()
	defer m.publishedServicesMu.Unlock()

	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		if router.IsLegacyServiceDescriptor(svc.Descriptor) {
			return fmt.Errorf("%w: %q", ErrLegacyDescriptorNotAllowed, svc.Descriptor)
		}
		if seen[svc.Descriptor] {
			return fmt.Errorf("%w: %q", ErrDuplicateServiceDescriptor, svc.Descriptor)
		}
		seen[svc.Descriptor] = true
		for _, existing := range m.publishedServices {
			if existing.info.Descriptor == svc.Descriptor {
				return fmt.Errorf("%w: %q", ErrDuplicateServiceDescriptor, svc.Descriptor)
			}
		}
	}

	for _, svc := range services {
		m.publishedServices = append(m.publishedServices, publishedService{appID: appID, info: svc})
	}
	return nil
}

// ConfigureReadyEvents subscribes (enable=true) or unsubscribes
// (enable=false) requestingApp to ready notifications for the given
// (hub, endpoint) pair or service descriptor. If the target already
// exists at subscription time, a ready event fires immediately.
func (m *Manager) ConfigureReadyEvents(requestingApp router.EndpointId, hub router.HubId, endpoint router.EndpointId, service *string, enable bool) error {
	m.mu.Lock()
	_, exists := m.endpointInfos[requestingApp]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %d", ErrEndpointNotRegistered, requestingApp)
	}

	sub := readySubscription{app: requestingApp, hub: hub, endpoint: endpoint, service: service}
	m.runOnEventLoop(func() {
		if enable {
			m.readySubs = append(m.readySubs, sub)
			m.fireIfAlreadyPresent(sub)
			return
		}
		kept := m.readySubs[:0]
		for _, s := range m.readySubs {
			if !(s.app == sub.app && s.hub == sub.hub && s.endpoint == sub.endpoint) {
				kept = append(kept, s)
			}
		}
		m.readySubs = kept
	})
	return nil
}

// fireIfAlreadyPresent checks whether sub's target is already registered
// and, if so, delivers an EventEndpointReady immediately. Event-loop only.
func (m *Manager) fireIfAlreadyPresent(sub readySubscription) {
	if sub.service != nil {
		ep, ok := m.r.GetEndpointForService(sub.hub, *sub.service)
		if ok {
			m.dispatch(sub.app, AppEvent{Kind: EventEndpointReady, ReadyHub: ep.HubId, ReadyEndpoint: ep.EndpointId})
		}
		return
	}
	if sub.endpoint != 0 {
		if _, ok := m.r.GetEndpointInfo(sub.hub, sub.endpoint); ok {
			m.dispatch(sub.app, AppEvent{Kind: EventEndpointReady, ReadyHub: sub.hub, ReadyEndpoint: sub.endpoint})
		}
	}
}

// OpenSessionAsync opens (or returns an existing equivalent) session from
// fromEndpoint to (toHub, toEndpoint), optionally qualified by service.
func (m *Manager) OpenSessionAsync(fromEndpoint router.EndpointId, toHub router.HubId, toEndpoint router.EndpointId, service *string, sessionID *router.SessionId) (router.SessionId, error) {
	return m.handle.OpenSession(fromEndpoint, toHub, toEndpoint, service, sessionID)
}

// OpenDefaultSessionAsync resolves an unqualified request — toHub
// unspecified, and either toEndpoint or service given — to a concrete
// target hub before opening the session.
func (m *Manager) OpenDefaultSessionAsync(fromEndpoint router.EndpointId, toHub router.HubId, toEndpoint router.EndpointId, service *string) (router.SessionId, error) {
	if toHub == 0 {
		resolvedHub, resolvedEndpoint, ok := m.findDefaultTarget(toEndpoint, service)
		if !ok {
			return router.InvalidSessionId, ErrNoDefaultHub
		}
		toHub = resolvedHub
		if toEndpoint == 0 {
			toEndpoint = resolvedEndpoint
		}
	}
	return m.handle.OpenSession(fromEndpoint, toHub, toEndpoint, service, nil)
}

// findDefaultTarget implements the default-hub resolution: by service
// descriptor first, falling back to a scan for any hub that has the named
// endpoint.
func (m *Manager) findDefaultTarget(endpoint router.EndpointId, service *string) (router.HubId, router.EndpointId, bool) {
	if service != nil {
		ep, ok := m.r.GetEndpointForService(0, *service)
		return ep.HubId, ep.EndpointId, ok
	}
	if endpoint == 0 {
		return 0, 0, false
	}
	var found router.HubId
	var ok bool
	m.r.ForEachMessageHub(func(info router.HubInfo) bool {
		if _, has := m.r.GetEndpointInfo(info.Id, endpoint); has {
			found, ok = info.Id, true
			return false
		}
		return true
	})
	return found, endpoint, ok
}

// OnSessionOpenComplete acknowledges sessionID, accepting a pending open
// request.
func (m *Manager) OnSessionOpenComplete(sessionID router.SessionId) error {
	return m.handle.OnSessionOpenComplete(sessionID)
}

// CloseSession closes sessionID, provided fromEndpoint is a member of it.
func (m *Manager) CloseSession(fromEndpoint router.EndpointId, sessionID router.SessionId, reason router.Reason) error {
	session, ok := m.handle.GetSession(sessionID)
	if !ok {
		return fmt.Errorf("%w: %d", router.ErrSessionNotFound, sessionID)
	}
	if session.Initiator.EndpointId != fromEndpoint && session.Peer.EndpointId != fromEndpoint {
		return fmt.Errorf("%w: endpoint %d in session %d", router.ErrSenderNotSessionMember, fromEndpoint, sessionID)
	}
	return m.handle.CloseSession(sessionID, reason)
}

// SendMessage sends payload on sessionID from fromEndpoint. If free is
// non-nil, it is invoked exactly once: synchronously if the send fails
// outright, or from the event loop shortly after a successful send.
func (m *Manager) SendMessage(fromEndpoint router.EndpointId, sessionID router.SessionId, payload []byte, messageType, permissions uint32, free func()) (bool, error) {
	ok, err := m.handle.SendMessage(fromEndpoint, sessionID, payload, messageType, permissions)
	if err != nil || !ok {
		if free != nil {
			free()
		}
		return ok, err
	}
	if free != nil {
		m.enqueueFreeRecord(payload, free)
	}
	return true, nil
}

func (m *Manager) enqueueFreeRecord(payload []byte, free func()) {
	m.postTask(func() {
		if len(m.freeRecords) >= m.maxFreeRecords {
			oldest := m.freeRecords[0]
			m.freeRecords = m.freeRecords[1:]
			oldest.free()
		}
		m.freeRecords = append(m.freeRecords, messageFreeRecord{payload: payload, free: free})
	})
}

// -------------------------------------------------------------------------
// HubCallback implementation
// -------------------------------------------------------------------------

var _ router.HubCallback = (*Manager)(nil)

func (m *Manager) dispatch(appID router.EndpointId, ev AppEvent) bool {
	m.mu.Lock()
	ch, ok := m.appChannels[appID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		m.logger.Warn("application event queue full, dropping event",
			slog.Uint64("app", uint64(appID)), slog.Int("kind", int(ev.Kind)))
		return false
	}
}

// sessionLocalEndpoints returns the distinct endpoint ids, among session's
// initiator and peer, that live on this hub.
func (m *Manager) sessionLocalEndpoints(session router.Session) []router.EndpointId {
	var eps []router.EndpointId
	if session.Initiator.HubId == m.hubID {
		eps = append(eps, session.Initiator.EndpointId)
	}
	if session.Peer.HubId == m.hubID {
		if len(eps) == 0 || eps[0] != session.Peer.EndpointId {
			eps = append(eps, session.Peer.EndpointId)
		}
	}
	return eps
}

// OnMessageReceived implements router.HubCallback.
func (m *Manager) OnMessageReceived(payload []byte, messageType, permissions uint32, session router.Session, sentByInitiator bool) bool {
	recipient := session.Initiator
	if sentByInitiator {
		recipient = session.Peer
	}
	if recipient.HubId != m.hubID {
		return false
	}
	return m.dispatch(recipient.EndpointId, AppEvent{
		Kind:    EventMessage,
		Session: session,
		Message: &MessageEvent{
			Payload:         payload,
			MessageType:     messageType,
			Permissions:     permissions,
			SentByInitiator: sentByInitiator,
		},
	})
}

// OnSessionOpenRequest implements router.HubCallback. The request is
// delivered only to the session's peer endpoint, not to its initiator.
func (m *Manager) OnSessionOpenRequest(session router.Session) {
	if session.Peer.HubId != m.hubID {
		return
	}
	m.dispatch(session.Peer.EndpointId, AppEvent{Kind: EventSessionOpenRequest, Session: session})
}

// OnSessionOpened implements router.HubCallback.
func (m *Manager) OnSessionOpened(session router.Session) {
	for _, ep := range m.sessionLocalEndpoints(session) {
		m.dispatch(ep, AppEvent{Kind: EventSessionOpened, Session: session})
	}
}

// OnSessionClosed implements router.HubCallback.
func (m *Manager) OnSessionClosed(session router.Session, reason router.Reason) {
	for _, ep := range m.sessionLocalEndpoints(session) {
		m.dispatch(ep, AppEvent{Kind: EventSessionClosed, Session: session, Reason: reason})
	}
}

// ForEachEndpoint implements router.HubCallback.
func (m *Manager) ForEachEndpoint(fn func(router.EndpointInfo) bool) {
	m.mu.Lock()
	infos := make([]router.EndpointInfo, 0, len(m.endpointInfos))
	for _, info := range m.endpointInfos {
		infos = append(infos, info)
	}
	m.mu.Unlock()
	for _, info := range infos {
		if !fn(info) {
			return
		}
	}
}

// GetEndpointInfo implements router.HubCallback.
func (m *Manager) GetEndpointInfo(id router.EndpointId) (router.EndpointInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.endpointInfos[id]
	return info, ok
}

// GetEndpointForService implements router.HubCallback.
func (m *Manager) GetEndpointForService(descriptor string) (router.EndpointId, bool) {
	m.publishedServicesMu.Lock()
	defer m.publishedServicesMu.Unlock()
	for _, s := range m.publishedServices {
		if s.info.Descriptor == descriptor {
			return s.appID, true
		}
	}
	return 0, false
}

// DoesEndpointHaveService implements router.HubCallback.
func (m *Manager) DoesEndpointHaveService(id router.EndpointId, descriptor string) bool {
	m.publishedServicesMu.Lock()
	defer m.publishedServicesMu.Unlock()
	for _, s := range m.publishedServices {
		if s.appID == id && s.info.Descriptor == descriptor {
			return true
		}
	}
	return false
}

// ForEachService implements router.HubCallback.
func (m *Manager) ForEachService(fn func(router.EndpointInfo, router.ServiceInfo) bool) {
	m.publishedServicesMu.Lock()
	type pair struct {
		info router.EndpointInfo
		svc  router.ServiceInfo
	}
	m.mu.Lock()
	pairs := make([]pair, 0, len(m.publishedServices))
	for _, s := range m.publishedServices {
		pairs = append(pairs, pair{info: m.endpointInfos[s.appID], svc: s.info})
	}
	m.mu.Unlock()
	m.publishedServicesMu.Unlock()

	for _, p := range pairs {
		if !fn(p.info, p.svc) {
			return
		}
	}
}

// OnHubRegistered implements router.HubCallback. The Local Hub Manager has
// no topology-driven behavior of its own beyond ready-event subscriptions,
// which are keyed on endpoint registration rather than hub registration.
func (m *Manager) OnHubRegistered(router.HubInfo) {}

// OnHubUnregistered implements router.HubCallback.
func (m *Manager) OnHubUnregistered(router.HubId) {}

// OnEndpointRegistered implements router.HubCallback: it is the trigger for
// the deferred endpoint-ready-event scan for endpoints on other hubs
// (RegisterEndpoint triggers it for this hub's own endpoints).
func (m *Manager) OnEndpointRegistered(hub router.HubId, endpoint router.EndpointId) {
	m.postTask(func() { m.onEndpointReadyEvent(hub, endpoint) })
}

// onEndpointReadyEvent scans the ready-subscription table for matches
// against (hub, endpoint) and fires EventEndpointReady for each. Event-loop
// only.
func (m *Manager) onEndpointReadyEvent(hub router.HubId, endpoint router.EndpointId) {
	for _, sub := range m.readySubs {
		switch {
		case sub.matchesTarget(hub, endpoint):
			m.dispatch(sub.app, AppEvent{Kind: EventEndpointReady, ReadyHub: hub, ReadyEndpoint: endpoint})
		case sub.hub == hub && sub.service != nil && m.r.DoesEndpointHaveService(hub, endpoint, *sub.service):
			m.dispatch(sub.app, AppEvent{Kind: EventEndpointReady, ReadyHub: hub, ReadyEndpoint: endpoint})
		}
	}
}

// OnEndpointUnregistered implements router.HubCallback. Subscriptions
// naming the now-gone endpoint are left in place; they simply never fire
// again, matching the router's own no-eager-cleanup stance on sessions.
func (m *Manager) OnEndpointUnregistered(router.HubId, router.EndpointId) {}
