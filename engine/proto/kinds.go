package proto

import (
	"fmt"

	"github.com/brickhost/brickd/engine/netutil"
)

// PacketKind is the numeric tag identifying the field layout of a frame.
// Tags are wire-stable: gaps are reserved by the legacy protocol and a tag is
// never reused for a different layout.
type PacketKind byte

// Packet kinds of the client protocol
const (
	PK_AUTHENTICATION      PacketKind = 1
	PK_SEND_PLAYERS        PacketKind = 2
	PK_FIGURE              PacketKind = 3
	PK_REMOVE_PLAYER       PacketKind = 4
	PK_CHAT                PacketKind = 6
	PK_PLAYER_MODIFICATION PacketKind = 9
	PK_KILL                PacketKind = 10
	PK_BRICK               PacketKind = 17
	PK_TEAM                PacketKind = 18
	PK_TOOL                PacketKind = 19
	PK_BOT                 PacketKind = 20
	PK_CLEAR_MAP           PacketKind = 21
	PK_DESTROY_BOT         PacketKind = 22
	PK_DELETE_BRICK        PacketKind = 23
	PK_BRICK_SINGLE        PacketKind = 24
	PK_KEY_PRESS           PacketKind = 25
	PK_EMITTER             PacketKind = 26
	PK_EMITTER_LIST        PacketKind = 27
)

var packetKindNames = map[PacketKind]string{
	PK_AUTHENTICATION:      "AUTHENTICATION",
	PK_SEND_PLAYERS:        "SEND_PLAYERS",
	PK_FIGURE:              "FIGURE",
	PK_REMOVE_PLAYER:       "REMOVE_PLAYER",
	PK_CHAT:                "CHAT",
	PK_PLAYER_MODIFICATION: "PLAYER_MODIFICATION",
	PK_KILL:                "KILL",
	PK_BRICK:               "BRICK",
	PK_TEAM:                "TEAM",
	PK_TOOL:                "TOOL",
	PK_BOT:                 "BOT",
	PK_CLEAR_MAP:           "CLEAR_MAP",
	PK_DESTROY_BOT:         "DESTROY_BOT",
	PK_DELETE_BRICK:        "DELETE_BRICK",
	PK_BRICK_SINGLE:        "BRICK_SINGLE",
	PK_KEY_PRESS:           "KEY_PRESS",
	PK_EMITTER:             "EMITTER",
	PK_EMITTER_LIST:        "EMITTER_LIST",
}

// compressibleKinds are the bulk sync kinds whose payload is compressed when
// it crosses the size threshold; the receiver learns the actual state from
// the compressed bit on the kind tag
var compressibleKinds = map[PacketKind]bool{
	PK_SEND_PLAYERS: true,
	PK_FIGURE:       true,
	PK_BRICK:        true,
	PK_TEAM:         true,
	PK_TOOL:         true,
	PK_BOT:          true,
	PK_EMITTER_LIST: true,
}

func (k PacketKind) String() string {
	if name, ok := packetKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PacketKind<%d>", byte(k))
}

// IsValid returns if the kind belongs to the closed protocol enumeration
func (k PacketKind) IsValid() bool {
	_, ok := packetKindNames[k]
	return ok
}

// AllocPacket allocates a packet with its kind tag written, ready for fields
func AllocPacket(kind PacketKind) *netutil.Packet {
	pkt := netutil.NewPacket()
	pkt.AppendByte(byte(kind))
	if compressibleKinds[kind] {
		pkt.SetCompressHint()
	}
	return pkt
}

// ReadKind consumes and returns the kind tag of a received packet
func ReadKind(pkt *netutil.Packet) PacketKind {
	return PacketKind(pkt.ReadOneByte())
}
