package remotehub

import (
	"sync"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

type remoteEndpoint struct {
	info     router.EndpointInfo
	services []router.ServiceInfo
}

// RemoteHub is the router-visible stand-in for one hub living on the far
// side of a host transport connection. It implements router.HubCallback,
// forwarding every notification to its owning Manager's HostCallback.
type RemoteHub struct {
	manager *Manager
	handle  *router.HubHandle
	info    router.HubInfo

	endpointsMu sync.Mutex
	endpoints   map[router.EndpointId]*remoteEndpoint
}

var _ router.HubCallback = (*RemoteHub)(nil)

// Id returns the router hub id this record represents.
func (h *RemoteHub) Id() router.HubId { return h.info.Id }

func (h *RemoteHub) registerEndpoint(info router.EndpointInfo, maxHostEndpoints int) error {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	if _, exists := h.endpoints[info.Id]; exists {
		return ErrEndpointAlreadyRegistered
	}
	if maxHostEndpoints > 0 && len(h.endpoints) >= maxHostEndpoints {
		return ErrHostEndpointTableFull
	}
	h.endpoints[info.Id] = &remoteEndpoint{info: info}
	return nil
}

func (h *RemoteHub) unregisterEndpoint(id router.EndpointId) error {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	if _, exists := h.endpoints[id]; !exists {
		return ErrEndpointNotFound
	}
	delete(h.endpoints, id)
	return nil
}

func (h *RemoteHub) publishServices(id router.EndpointId, services []router.ServiceInfo) error {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	ep, exists := h.endpoints[id]
	if !exists {
		return ErrEndpointNotFound
	}
	ep.services = append(ep.services, services...)
	return nil
}

// -------------------------------------------------------------------------
// router.HubCallback implementation
// -------------------------------------------------------------------------

func (h *RemoteHub) OnMessageReceived(payload []byte, messageType, permissions uint32, session router.Session, sentByInitiator bool) bool {
	h.manager.notifyHost(func() {
		h.manager.host.OnMessageReceived(h.info.Id, session, payload, messageType, permissions, sentByInitiator)
	})
	return true
}

func (h *RemoteHub) OnSessionOpenRequest(session router.Session) {
	h.manager.notifyHost(func() { h.manager.host.OnSessionOpenRequest(h.info.Id, session) })
}

func (h *RemoteHub) OnSessionOpened(session router.Session) {
	h.manager.notifyHost(func() { h.manager.host.OnSessionOpened(h.info.Id, session) })
}

func (h *RemoteHub) OnSessionClosed(session router.Session, reason router.Reason) {
	h.manager.notifyHost(func() { h.manager.host.OnSessionClosed(h.info.Id, session, reason) })
}

func (h *RemoteHub) ForEachEndpoint(fn func(router.EndpointInfo) bool) {
	h.endpointsMu.Lock()
	infos := make([]router.EndpointInfo, 0, len(h.endpoints))
	for _, ep := range h.endpoints {
		infos = append(infos, ep.info)
	}
	h.endpointsMu.Unlock()
	for _, info := range infos {
		if !fn(info) {
			return
		}
	}
}

func (h *RemoteHub) GetEndpointInfo(id router.EndpointId) (router.EndpointInfo, bool) {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	ep, ok := h.endpoints[id]
	if !ok {
		return router.EndpointInfo{}, false
	}
	return ep.info, true
}

func (h *RemoteHub) GetEndpointForService(descriptor string) (router.EndpointId, bool) {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	for id, ep := range h.endpoints {
		for _, svc := range ep.services {
			if svc.Descriptor == descriptor {
				return id, true
			}
		}
	}
	return 0, false
}

func (h *RemoteHub) DoesEndpointHaveService(id router.EndpointId, descriptor string) bool {
	h.endpointsMu.Lock()
	defer h.endpointsMu.Unlock()
	ep, ok := h.endpoints[id]
	if !ok {
		return false
	}
	for _, svc := range ep.services {
		if svc.Descriptor == descriptor {
			return true
		}
	}
	return false
}

func (h *RemoteHub) ForEachService(fn func(router.EndpointInfo, router.ServiceInfo) bool) {
	h.endpointsMu.Lock()
	type pair struct {
		info router.EndpointInfo
		svc  router.ServiceInfo
	}
	var pairs []pair
	for _, ep := range h.endpoints {
		for _, svc := range ep.services {
			pairs = append(pairs, pair{info: ep.info, svc: svc})
		}
	}
	h.endpointsMu.Unlock()
	for _, p := range pairs {
		if !fn(p.info, p.svc) {
			return
		}
	}
}

func (h *RemoteHub) OnHubRegistered(info router.HubInfo) {
	h.manager.notifyHost(func() { h.manager.host.OnHubRegistered(h.info.Id, info) })
}

func (h *RemoteHub) OnHubUnregistered(id router.HubId) {
	h.manager.notifyHost(func() { h.manager.host.OnHubUnregistered(h.info.Id, id) })
}

func (h *RemoteHub) OnEndpointRegistered(hub router.HubId, endpoint router.EndpointId) {
	h.manager.notifyHost(func() { h.manager.host.OnEndpointRegistered(h.info.Id, hub, endpoint) })
}

func (h *RemoteHub) OnEndpointUnregistered(hub router.HubId, endpoint router.EndpointId) {
	h.manager.notifyHost(func() { h.manager.host.OnEndpointUnregistered(h.info.Id, hub, endpoint) })
}
