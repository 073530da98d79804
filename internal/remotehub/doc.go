// Package remotehub implements the Remote Hub Manager: the router-facing
// component that stands in, one RemoteHub per registered hub, for every
// hub that actually lives on the far side of a host transport connection.
// It forwards router callbacks to a HostCallback across that connection
// and translates the host's registration/session requests back into
// router operations.
package remotehub
