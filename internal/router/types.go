package router

import "fmt"

// HubId uniquely identifies a message hub. The value 0 denotes either
// "invalid" or "any", depending on the calling context.
type HubId uint64

// EndpointId uniquely identifies an endpoint within its owning hub. The
// value 0 denotes either "invalid" or "any", depending on the calling
// context.
type EndpointId uint64

// SessionId uniquely identifies an active or pending session at the
// router. InvalidSessionId marks the absence of a session.
type SessionId uint16

// InvalidSessionId is returned by operations that fail to produce a
// session id.
const InvalidSessionId SessionId = 0xFFFF

// DefaultReservedSessionId is the default partition point between
// router-assigned session ids ([0, reserved)) and caller-assigned ones
// ([reserved, 0xFFFE]).
const DefaultReservedSessionId SessionId = 0x8000

// HubNameMaxLen is the maximum length, in bytes, of a hub name.
const HubNameMaxLen = 50

// EndpointNameMaxLen is the maximum length, in bytes, of an endpoint name.
const EndpointNameMaxLen = 50

// ServiceDescriptorMaxLen is the maximum length, in bytes, of a service
// descriptor string.
const ServiceDescriptorMaxLen = 127

// EndpointType classifies the kind of process an endpoint represents.
type EndpointType int

const (
	EndpointTypeInvalid EndpointType = iota
	EndpointTypeHostFramework
	EndpointTypeHostApp
	EndpointTypeHostNative
	EndpointTypeNanoapp
	EndpointTypeGeneric
)

func (t EndpointType) String() string {
	switch t {
	case EndpointTypeHostFramework:
		return "host_framework"
	case EndpointTypeHostApp:
		return "host_app"
	case EndpointTypeHostNative:
		return "host_native"
	case EndpointTypeNanoapp:
		return "nanoapp"
	case EndpointTypeGeneric:
		return "generic"
	default:
		return "invalid"
	}
}

// Endpoint permission bits, as carried on EndpointInfo.RequiredPermissions.
const (
	PermissionNone             uint32 = 0
	PermissionBluetooth        uint32 = 1 << 0
	PermissionWifi             uint32 = 1 << 1
	PermissionGnss             uint32 = 1 << 2
	PermissionWwan             uint32 = 1 << 3
	PermissionAudio            uint32 = 1 << 4
	PermissionSensorHealth     uint32 = 1 << 5
	PermissionSensorInstrument uint32 = 1 << 6
)

// RpcFormat identifies the wire encoding a service's RPC methods use.
type RpcFormat int

const (
	RpcFormatCustom RpcFormat = iota
	RpcFormatAidl
	RpcFormatPwRpcProtobuf
)

func (f RpcFormat) String() string {
	switch f {
	case RpcFormatAidl:
		return "aidl"
	case RpcFormatPwRpcProtobuf:
		return "pw_rpc_protobuf"
	default:
		return "custom"
	}
}

// Reason enumerates why a session was closed or a session-open request was
// rejected.
type Reason int

const (
	ReasonUnspecified Reason = iota
	ReasonOutOfMemory
	ReasonTimeout
	ReasonOpenEndpointSessionRequestRejected
	ReasonCloseEndpointSessionRequested
	ReasonEndpointInvalid
	ReasonEndpointGone
	ReasonEndpointCrashed
	ReasonHubReset
	ReasonPermissionDenied
)

func (r Reason) String() string {
	switch r {
	case ReasonOutOfMemory:
		return "out_of_memory"
	case ReasonTimeout:
		return "timeout"
	case ReasonOpenEndpointSessionRequestRejected:
		return "open_endpoint_session_request_rejected"
	case ReasonCloseEndpointSessionRequested:
		return "close_endpoint_session_requested"
	case ReasonEndpointInvalid:
		return "endpoint_invalid"
	case ReasonEndpointGone:
		return "endpoint_gone"
	case ReasonEndpointCrashed:
		return "endpoint_crashed"
	case ReasonHubReset:
		return "hub_reset"
	case ReasonPermissionDenied:
		return "permission_denied"
	default:
		return "unspecified"
	}
}

// HubInfo describes a registered message hub.
type HubInfo struct {
	Id   HubId
	Name string
}

// EndpointInfo describes an endpoint registered on a hub.
type EndpointInfo struct {
	Id                  EndpointId
	Name                string
	Version             uint32
	Type                EndpointType
	RequiredPermissions uint32
}

// ServiceInfo describes a service exposed by an endpoint.
type ServiceInfo struct {
	Descriptor string
	Major      uint32
	Minor      uint32
	Format     RpcFormat
}

// Endpoint identifies an endpoint by the hub it lives on.
type Endpoint struct {
	HubId      HubId
	EndpointId EndpointId
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d:%d", e.HubId, e.EndpointId)
}

// Session is a stateful channel between exactly two endpoints, optionally
// qualified by a service descriptor.
type Session struct {
	Id                SessionId
	Initiator         Endpoint
	Peer              Endpoint
	Active            bool
	HasServiceDesc    bool
	ServiceDescriptor string
}

// isEquivalent reports whether s and other join the same unordered pair of
// endpoints with the same (present-or-absent) service descriptor.
func (s Session) isEquivalent(other Session) bool {
	if s.HasServiceDesc != other.HasServiceDesc {
		return false
	}
	if s.HasServiceDesc && s.ServiceDescriptor != other.ServiceDescriptor {
		return false
	}
	sameOrder := s.Initiator == other.Initiator && s.Peer == other.Peer
	crossOrder := s.Initiator == other.Peer && s.Peer == other.Initiator
	return sameOrder || crossOrder
}

// otherEndpoint returns the endpoint on the opposite side of from within
// the session. ok is false if from is not a member of the session.
func (s Session) otherEndpoint(from Endpoint) (Endpoint, bool) {
	switch from {
	case s.Initiator:
		return s.Peer, true
	case s.Peer:
		return s.Initiator, true
	default:
		return Endpoint{}, false
	}
}

// hasEndpointOnHub reports whether the session has an endpoint living on
// hub.
func (s Session) hasEndpointOnHub(hub HubId) bool {
	return s.Initiator.HubId == hub || s.Peer.HubId == hub
}

// Message is a routed payload within a session.
type Message struct {
	Sender      Endpoint
	Recipient   Endpoint
	SessionId   SessionId
	Payload     []byte
	MessageType uint32
	Permissions uint32
}
