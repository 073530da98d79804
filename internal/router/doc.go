// Package router implements the message router: the shared fabric that
// dispatches messages between endpoints living on different message hubs.
//
// This includes the hub and session tables, session-id allocation, the
// legacy service-descriptor codec, and the HubCallback/HubHandle surface
// that the local and remote hub managers build on.
package router
