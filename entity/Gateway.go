package entity

import (
	"github.com/brickhost/brickd/engine/netutil"
)

// Client is one authenticated remote connection. The server's client proxy
// implements it; entity code never touches sockets directly.
type Client interface {
	// Address is the remote network address, without the port
	Address() string
	// Push queues a packet for delivery on this connection only
	Push(pkt *netutil.Packet) *Deferred
	// Kick delivers a reason message best-effort and closes the connection
	Kick(reason string)
}

// Gateway fans packets out to the authenticated connection set. Implemented
// by the server's connection registry and threaded into World at startup.
type Gateway interface {
	Broadcast(pkt *netutil.Packet) *Deferred
	BroadcastExcept(except Client, pkt *netutil.Packet) *Deferred
}

// AssetResolver resolves an asset id into a mesh/texture/sound reference
// string. Resolutions are cached by id for the process lifetime; a failed
// resolution fails the pending mutator as a whole.
type AssetResolver interface {
	ResolveAsset(assetId uint32) (string, error)
}
