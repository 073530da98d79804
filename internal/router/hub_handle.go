package router

import "sync/atomic"

// HubHandle is a façade bound to a single (router, hub id) pair, returned
// by Router.RegisterHub. Its methods narrow router operations to the
// bound hub's identity. Unregister is idempotent; once unregistered (or
// on a zero-value HubHandle), every forwarding method that returns an
// error returns ErrHandleNotRegistered, and GetSession reports absence.
type HubHandle struct {
	router       *Router
	hubId        HubId
	unregistered atomic.Bool
}

// HubId returns the id this handle is bound to.
func (h *HubHandle) HubId() HubId {
	if h == nil {
		return 0
	}
	return h.hubId
}

// IsRegistered reports whether the handle's hub is still registered with
// the router.
func (h *HubHandle) IsRegistered() bool {
	return h != nil && h.router != nil && !h.unregistered.Load()
}

// Unregister removes the bound hub from the router. Safe to call more
// than once; only the first call has effect.
func (h *HubHandle) Unregister() {
	if h == nil || h.router == nil {
		return
	}
	if h.unregistered.CompareAndSwap(false, true) {
		h.router.UnregisterHub(h.hubId)
	}
}

// Close is an alias for Unregister, letting HubHandle satisfy io.Closer so
// callers can `defer handle.Close()` the way they would a file or
// connection.
func (h *HubHandle) Close() error {
	h.Unregister()
	return nil
}

func (h *HubHandle) guard() error {
	if !h.IsRegistered() {
		return ErrHandleNotRegistered
	}
	return nil
}

// OpenSession forwards to Router.OpenSession with this handle's hub as the
// initiator.
func (h *HubHandle) OpenSession(fromEndpoint EndpointId, toHub HubId, toEndpoint EndpointId, service *string, sessionId *SessionId) (SessionId, error) {
	if err := h.guard(); err != nil {
		return InvalidSessionId, err
	}
	return h.router.OpenSession(h.hubId, fromEndpoint, toHub, toEndpoint, service, sessionId)
}

// CloseSession forwards to Router.CloseSession with this handle's hub.
func (h *HubHandle) CloseSession(id SessionId, reason Reason) error {
	if err := h.guard(); err != nil {
		return err
	}
	return h.router.CloseSession(h.hubId, id, reason)
}

// OnSessionOpenComplete forwards to Router.OnSessionOpenComplete with this
// handle's hub.
func (h *HubHandle) OnSessionOpenComplete(id SessionId) error {
	if err := h.guard(); err != nil {
		return err
	}
	return h.router.OnSessionOpenComplete(h.hubId, id)
}

// GetSession forwards to Router.GetSession with this handle's hub.
func (h *HubHandle) GetSession(id SessionId) (Session, bool) {
	if h.guard() != nil {
		return Session{}, false
	}
	return h.router.GetSession(h.hubId, id)
}

// SendMessage forwards to Router.SendMessage with this handle's hub.
func (h *HubHandle) SendMessage(fromEndpoint EndpointId, id SessionId, payload []byte, messageType, permissions uint32) (bool, error) {
	if err := h.guard(); err != nil {
		return false, err
	}
	return h.router.SendMessage(h.hubId, fromEndpoint, id, payload, messageType, permissions)
}

// RegisterEndpoint forwards to Router.RegisterEndpoint with this handle's
// hub.
func (h *HubHandle) RegisterEndpoint(endpoint EndpointId) error {
	if err := h.guard(); err != nil {
		return err
	}
	return h.router.RegisterEndpoint(h.hubId, endpoint)
}

// UnregisterEndpoint forwards to Router.UnregisterEndpoint with this
// handle's hub.
func (h *HubHandle) UnregisterEndpoint(endpoint EndpointId) error {
	if err := h.guard(); err != nil {
		return err
	}
	return h.router.UnregisterEndpoint(h.hubId, endpoint)
}
