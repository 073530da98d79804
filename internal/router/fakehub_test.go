package router_test

import (
	"sync"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

// receivedMessage records one call to fakeHub.OnMessageReceived.
type receivedMessage struct {
	payload         []byte
	messageType     uint32
	permissions     uint32
	session         router.Session
	sentByInitiator bool
}

// closedNotification records one call to fakeHub.OnSessionClosed.
type closedNotification struct {
	session router.Session
	reason  router.Reason
}

// fakeHub is a minimal, test-only HubCallback implementation. Every
// callback invocation is appended to a slice so tests can assert on call
// order and content; OnSessionOpenRequestFunc and OnMessageReceivedFunc
// let a test script a hub's reaction (ack, reject, or accept/refuse a
// message) synchronously from within the callback, exercising the
// router's reentrancy guarantee.
type fakeHub struct {
	mu sync.Mutex

	endpoints map[router.EndpointId]router.EndpointInfo
	services  map[router.EndpointId][]router.ServiceInfo

	received           []receivedMessage
	openRequests       []router.Session
	opened             []router.Session
	closed             []closedNotification
	hubsRegistered     []router.HubInfo
	hubsUnregistered   []router.HubId
	endpointsRegistered   []router.Endpoint
	endpointsUnregistered []router.Endpoint

	OnSessionOpenRequestFunc func(session router.Session)
	OnMessageReceivedFunc    func(payload []byte, messageType, permissions uint32, session router.Session, sentByInitiator bool) bool
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		endpoints: make(map[router.EndpointId]router.EndpointInfo),
		services:  make(map[router.EndpointId][]router.ServiceInfo),
	}
}

func (h *fakeHub) addEndpoint(info router.EndpointInfo, services ...router.ServiceInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[info.Id] = info
	h.services[info.Id] = services
}

func (h *fakeHub) OnMessageReceived(payload []byte, messageType, permissions uint32, session router.Session, sentByInitiator bool) bool {
	h.mu.Lock()
	h.received = append(h.received, receivedMessage{payload, messageType, permissions, session, sentByInitiator})
	fn := h.OnMessageReceivedFunc
	h.mu.Unlock()
	if fn != nil {
		return fn(payload, messageType, permissions, session, sentByInitiator)
	}
	return true
}

func (h *fakeHub) OnSessionOpenRequest(session router.Session) {
	h.mu.Lock()
	h.openRequests = append(h.openRequests, session)
	fn := h.OnSessionOpenRequestFunc
	h.mu.Unlock()
	if fn != nil {
		fn(session)
	}
}

func (h *fakeHub) OnSessionOpened(session router.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, session)
}

func (h *fakeHub) OnSessionClosed(session router.Session, reason router.Reason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, closedNotification{session, reason})
}

func (h *fakeHub) ForEachEndpoint(fn func(router.EndpointInfo) bool) {
	h.mu.Lock()
	infos := make([]router.EndpointInfo, 0, len(h.endpoints))
	for _, info := range h.endpoints {
		infos = append(infos, info)
	}
	h.mu.Unlock()
	for _, info := range infos {
		if !fn(info) {
			return
		}
	}
}

func (h *fakeHub) GetEndpointInfo(id router.EndpointId) (router.EndpointInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.endpoints[id]
	return info, ok
}

func (h *fakeHub) GetEndpointForService(descriptor string) (router.EndpointId, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, svcs := range h.services {
		for _, s := range svcs {
			if s.Descriptor == descriptor {
				return id, true
			}
		}
	}
	return 0, false
}

func (h *fakeHub) DoesEndpointHaveService(id router.EndpointId, descriptor string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.services[id] {
		if s.Descriptor == descriptor {
			return true
		}
	}
	return false
}

func (h *fakeHub) ForEachService(fn func(router.EndpointInfo, router.ServiceInfo) bool) {
	h.mu.Lock()
	type pair struct {
		ep  router.EndpointInfo
		svc router.ServiceInfo
	}
	var pairs []pair
	for id, svcs := range h.services {
		for _, s := range svcs {
			pairs = append(pairs, pair{h.endpoints[id], s})
		}
	}
	h.mu.Unlock()
	for _, p := range pairs {
		if !fn(p.ep, p.svc) {
			return
		}
	}
}

func (h *fakeHub) OnHubRegistered(info router.HubInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hubsRegistered = append(h.hubsRegistered, info)
}

func (h *fakeHub) OnHubUnregistered(id router.HubId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hubsUnregistered = append(h.hubsUnregistered, id)
}

func (h *fakeHub) OnEndpointRegistered(hub router.HubId, endpoint router.EndpointId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpointsRegistered = append(h.endpointsRegistered, router.Endpoint{HubId: hub, EndpointId: endpoint})
}

func (h *fakeHub) OnEndpointUnregistered(hub router.HubId, endpoint router.EndpointId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpointsUnregistered = append(h.endpointsUnregistered, router.Endpoint{HubId: hub, EndpointId: endpoint})
}
