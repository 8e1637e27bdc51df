package engine

import "strings"

// Notifications published by a client runtime.
const (
	EventClientResourceStarting = "onClientResourceStarting"
	EventClientResourceStart    = "onClientResourceStart"
	EventClientResourceStop     = "onClientResourceStop"
	EventGameEventTriggered     = "gameEventTriggered"
	EventPopulationPedCreating  = "populationPedCreating"
)

// Notifications published by a server runtime.
const (
	EventResourceStarting   = "onResourceStarting"
	EventResourceStart      = "onResourceStart"
	EventResourceStop       = "onResourceStop"
	EventPlayerConnecting   = "playerConnecting"
	EventPlayerJoining      = "playerJoining"
	EventPlayerDropped      = "playerDropped"
	EventPlayerEnteredScope = "playerEnteredScope"
	EventPlayerLeftScope    = "playerLeftScope"
	EventEntityCreating     = "entityCreating"
)

// Published by both runtimes.
const (
	EventEntityCreated = "entityCreated"
	EventEntityRemoved = "entityRemoved"
)

const internalPrefix = "internal:"

// InternalEvent scopes name to resource: internal:<resource>:<name>.
func InternalEvent(resource, name string) string {
	return internalPrefix + resource + ":" + name
}

// ClientInitializedEvent is sent by a client once its host object finished
// initializing.
func ClientInitializedEvent(resource string) string {
	return InternalEvent(resource, "onPlayerClientInitialized")
}

// UIRequestEvent carries inbound UI requests. Locally on the client it is
// published by the UI layer; over the network it relays them to the server.
func UIRequestEvent(resource string) string {
	return InternalEvent(resource, "nui:request")
}

// UIPushEvent carries UI messages pushed by the server to a client.
func UIPushEvent(resource string) string {
	return InternalEvent(resource, "nui:push")
}

// IsInternal reports whether name is an internal event of resource.
func IsInternal(resource, name string) bool {
	return strings.HasPrefix(name, internalPrefix+resource+":")
}
