package remotehub_test

import (
	"sync"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

// fakeLocalHub is a minimal, test-only HubCallback standing in for a
// non-remote peer hub (mirroring internal/router's own fakeHub) so tests
// can exercise session traffic crossing the router between a RemoteHub
// and an ordinary local one.
type fakeLocalHub struct {
	mu sync.Mutex

	endpoints map[router.EndpointId]router.EndpointInfo

	received     []router.Session
	openRequests []router.Session
	opened       []router.Session
	closed       []router.Session
}

func newFakeLocalHub() *fakeLocalHub {
	return &fakeLocalHub{endpoints: make(map[router.EndpointId]router.EndpointInfo)}
}

func (h *fakeLocalHub) addEndpoint(info router.EndpointInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[info.Id] = info
}

func (h *fakeLocalHub) OnMessageReceived(payload []byte, messageType, permissions uint32, session router.Session, sentByInitiator bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, session)
	return true
}

func (h *fakeLocalHub) OnSessionOpenRequest(session router.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openRequests = append(h.openRequests, session)
}

func (h *fakeLocalHub) OnSessionOpened(session router.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, session)
}

func (h *fakeLocalHub) OnSessionClosed(session router.Session, reason router.Reason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, session)
}

func (h *fakeLocalHub) ForEachEndpoint(fn func(router.EndpointInfo) bool) {
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

func (h *fakeLocalHub) GetEndpointInfo(id router.EndpointId) (router.EndpointInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.endpoints[id]
	return info, ok
}

func (h *fakeLocalHub) GetEndpointForService(descriptor string) (router.EndpointId, bool) {
	return 0, false
}

func (h *fakeLocalHub) DoesEndpointHaveService(id router.EndpointId, descriptor string) bool {
	return false
}

func (h *fakeLocalHub) ForEachService(fn func(router.EndpointInfo, router.ServiceInfo) bool) {}

func (h *fakeLocalHub) OnHubRegistered(info router.HubInfo) {}

func (h *fakeLocalHub) OnHubUnregistered(id router.HubId) {}

func (h *fakeLocalHub) OnEndpointRegistered(hub router.HubId, endpoint router.EndpointId) {}

func (h *fakeLocalHub) OnEndpointUnregistered(hub router.HubId, endpoint router.EndpointId) {}
