package proto

import (
	"github.com/brickhost/brickd/engine/netutil"
)

// Auth verdict bytes carried in the PK_AUTHENTICATION reply
const (
	AUTH_OK     = 1
	AUTH_DENIED = 0
)

// Client tool request ops carried in client → server PK_TOOL frames
const (
	TOOL_REQ_EQUIP byte = iota
	TOOL_REQ_UNEQUIP
	TOOL_REQ_ACTIVATE
)

// MakeAuthReplyPacket builds the authentication verdict sent back to a
// freshly authenticated (or rejected) connection
func MakeAuthReplyPacket(verdict byte, netId uint32, userId uint32, reason string) *netutil.Packet {
	pkt := AllocPacket(PK_AUTHENTICATION)
	pkt.AppendByte(verdict)
	pkt.AppendUint32(netId)
	pkt.AppendUint32(userId)
	pkt.AppendVarStr(reason)
	return pkt
}

// MakeChatPacket builds a chat relay frame
func MakeChatPacket(senderNetId uint32, message string) *netutil.Packet {
	pkt := AllocPacket(PK_CHAT)
	pkt.AppendUint32(senderNetId)
	pkt.AppendVarStr(message)
	return pkt
}

// MakeModificationPacket builds a single-attribute update for a player or
// bot. Values travel as strings; both ends know the attribute's real type.
func MakeModificationPacket(netId uint32, attr string, value string) *netutil.Packet {
	pkt := AllocPacket(PK_PLAYER_MODIFICATION)
	pkt.AppendUint32(netId)
	pkt.AppendVarStr(attr)
	pkt.AppendVarStr(value)
	return pkt
}

// MakeRemovePlayerPacket announces that a player left
func MakeRemovePlayerPacket(netId uint32) *netutil.Packet {
	pkt := AllocPacket(PK_REMOVE_PLAYER)
	pkt.AppendUint32(netId)
	return pkt
}

// MakeKillPacket flips a player's dead state on clients. dead=1 kills,
// dead=0 respawns.
func MakeKillPacket(netId uint32, dead byte) *netutil.Packet {
	pkt := AllocPacket(PK_KILL)
	pkt.AppendUint32(netId)
	pkt.AppendByte(dead)
	return pkt
}

// MakeDeleteBrickPacket removes one brick from client scenes
func MakeDeleteBrickPacket(netId uint32) *netutil.Packet {
	pkt := AllocPacket(PK_DELETE_BRICK)
	pkt.AppendUint32(netId)
	return pkt
}

// MakeDestroyBotPacket removes one bot from client scenes
func MakeDestroyBotPacket(netId uint32) *netutil.Packet {
	pkt := AllocPacket(PK_DESTROY_BOT)
	pkt.AppendUint32(netId)
	return pkt
}

// MakeClearMapPacket wipes every brick from client scenes
func MakeClearMapPacket() *netutil.Packet {
	return AllocPacket(PK_CLEAR_MAP)
}
