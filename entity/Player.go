package entity

import (
	"time"

	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Figure field bits carried in PK_FIGURE frames
const (
	figureHeadColor = 1 << iota
	figureTorsoColor
	figureLeftArmColor
	figureRightArmColor
	figureLeftLegColor
	figureRightLegColor
	figureHat1
	figureHat2
	figureHat3
	figureFace
	figureShirt
	figurePants
	figureTshirt

	figureFieldAll = 1<<13 - 1
)

// BodyColors are the six limb colors of an avatar figure
type BodyColors struct {
	Head     string
	Torso    string
	LeftArm  string
	RightArm string
	LeftLeg  string
	RightLeg string
}

// WornAssets are the asset ids worn by an avatar figure
type WornAssets struct {
	Hat1   uint32
	Hat2   uint32
	Hat3   uint32
	Face   uint32
	Shirt  uint32
	Pants  uint32
	Tshirt uint32
}

type wornRefs struct {
	hat1   string
	hat2   string
	hat3   string
	face   string
	shirt  string
	pants  string
	tshirt string
}

// Player is the avatar of one authenticated connection; exactly one per
// connection. It is created after the authentication handshake and destroyed
// when the connection closes.
type Player struct {
	entityHeader
	world  *World
	client Client

	userId        uint32
	username      string
	membership    byte
	clientVariant byte
	authenticated bool

	health    int32
	maxHealth int32
	alive     bool

	position      Vector3
	rotation      Vector3
	scale         Vector3
	speed         float32
	jumpPower     float32
	gravity       float32
	spawnPosition Vector3

	cameraPosition Vector3
	cameraRotation Vector3
	cameraFOV      float32
	cameraDistance float32
	cameraMode     string
	cameraObject   uint32

	colors BodyColors
	assets WornAssets
	refs   wornRefs

	team *Team

	inventory []*Tool
	equipped  *Tool

	blocked map[uint32]struct{}

	chatTimes []time.Time
}

// CreatePlayer spawns the avatar for a freshly authenticated connection and
// registers it in the world index. Roster announcement and world sync are
// driven by the caller.
func (w *World) CreatePlayer(client Client, userId uint32, username string, membership byte) *Player {
	p := &Player{
		world:      w,
		client:     client,
		userId:     userId,
		username:   username,
		membership: membership,

		health:    consts.DEFAULT_MAX_HEALTH,
		maxHealth: consts.DEFAULT_MAX_HEALTH,
		alive:     true,

		scale:     Vector3{1, 1, 1},
		speed:     4,
		jumpPower: 5,
		gravity:   -9.8,

		cameraFOV:      60,
		cameraDistance: 5,
		cameraMode:     "orbit",

		colors: BodyColors{
			Head:     "#d9bc62",
			Torso:    "#d9bc62",
			LeftArm:  "#d9bc62",
			RightArm: "#d9bc62",
			LeftLeg:  "#d9bc62",
			RightLeg: "#d9bc62",
		},

		blocked: map[uint32]struct{}{},
	}
	p.initHeader(KindPlayer)
	w.addPlayer(p)
	return p
}

func (p *Player) UserId() uint32      { return p.userId }
func (p *Player) Username() string    { return p.username }
func (p *Player) Membership() byte    { return p.membership }
func (p *Player) Client() Client      { return p.client }
func (p *Player) Authenticated() bool { return p.authenticated }
func (p *Player) Health() int32       { return p.health }
func (p *Player) MaxHealth() int32    { return p.maxHealth }
func (p *Player) Alive() bool         { return p.alive }
func (p *Player) Position() Vector3   { return p.position }
func (p *Player) Rotation() Vector3   { return p.rotation }
func (p *Player) Team() *Team         { return p.team }
func (p *Player) Equipped() *Tool     { return p.equipped }

// SetAuthenticated marks the handshake complete
func (p *Player) SetAuthenticated() {
	p.authenticated = true
}

// SetClientVariant records which client build the connection runs
func (p *Player) SetClientVariant(v byte) {
	p.clientVariant = v
}

func (p *Player) broadcastAttr(attr string, value string) *Deferred {
	pkt := proto.MakeModificationPacket(p.netId, attr, value)
	defer pkt.Release()
	return p.world.gw.Broadcast(pkt)
}

func (p *Player) unicastAttr(attr string, value string) *Deferred {
	pkt := proto.MakeModificationPacket(p.netId, attr, value)
	defer pkt.Release()
	return p.client.Push(pkt)
}

// SetPosition moves the avatar and replicates to everyone
func (p *Player) SetPosition(pos Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.position = pos
	return p.broadcastAttr("position", formatVector(pos))
}

// SetRotation turns the avatar
func (p *Player) SetRotation(rot Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.rotation = rot
	return p.broadcastAttr("rotation", formatVector(rot))
}

// ReportMovement applies a client's self-reported movement and relays it
// to the other connections; the reporting client already rendered its own
// movement locally and must not receive an echo
func (p *Player) ReportMovement(pos Vector3, rot Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.position = pos
	p.rotation = rot
	d1 := p.relayAttr("position", formatVector(pos))
	d2 := p.relayAttr("rotation", formatVector(rot))
	return CombineDeferreds([]*Deferred{d1, d2})
}

func (p *Player) relayAttr(attr string, value string) *Deferred {
	pkt := proto.MakeModificationPacket(p.netId, attr, value)
	defer pkt.Release()
	return p.world.gw.BroadcastExcept(p.client, pkt)
}

// SetScale resizes the avatar
func (p *Player) SetScale(s Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.scale = s
	return p.broadcastAttr("scale", formatVector(s))
}

// SetSpeed changes movement speed; replicated to the owning client only
func (p *Player) SetSpeed(speed float32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.speed = speed
	return p.unicastAttr("speed", formatFloat(speed))
}

// SetJumpPower changes jump power; owning client only
func (p *Player) SetJumpPower(jp float32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.jumpPower = jp
	return p.unicastAttr("jumpPower", formatFloat(jp))
}

// SetGravity changes the personal gravity; owning client only
func (p *Player) SetGravity(g float32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.gravity = g
	return p.unicastAttr("gravity", formatFloat(g))
}

// SetSpawnPosition sets where the avatar respawns
func (p *Player) SetSpawnPosition(pos Vector3) {
	p.spawnPosition = pos
}

// SetCameraPosition moves the camera; owning client only
func (p *Player) SetCameraPosition(pos Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.cameraPosition = pos
	return p.unicastAttr("camera.position", formatVector(pos))
}

// SetCameraRotation turns the camera; owning client only
func (p *Player) SetCameraRotation(rot Vector3) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.cameraRotation = rot
	return p.unicastAttr("camera.rotation", formatVector(rot))
}

// SetCameraFOV changes the field of view; owning client only
func (p *Player) SetCameraFOV(fov float32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.cameraFOV = fov
	return p.unicastAttr("camera.fov", formatFloat(fov))
}

// SetCameraDistance changes the orbit distance; owning client only
func (p *Player) SetCameraDistance(d float32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.cameraDistance = d
	return p.unicastAttr("camera.distance", formatFloat(d))
}

// SetCameraMode switches camera mode ("orbit", "fixed", "first"); the
// optional attached object travels as its netId.
func (p *Player) SetCameraMode(mode string, attachedNetId uint32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.cameraMode = mode
	p.cameraObject = attachedNetId
	d1 := p.unicastAttr("camera.mode", mode)
	d2 := p.unicastAttr("camera.object", formatUint(attachedNetId))
	return CombineDeferreds([]*Deferred{d1, d2})
}

// SetHealth clamps health to [0, maxHealth] and kills the avatar when it
// reaches zero. Health is replicated to the owning client only; death is
// replicated to everyone through the kill frame.
func (p *Player) SetHealth(h int32) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	if h > p.maxHealth {
		h = p.maxHealth
	}
	if h < 0 {
		h = 0
	}
	p.health = h
	if h == 0 && p.alive {
		return p.Kill()
	}
	return p.unicastAttr("health", formatUint(uint32(h)))
}

// Damage subtracts health, killing at zero
func (p *Player) Damage(amount int32) *Deferred {
	return p.SetHealth(p.health - amount)
}

// Kill marks the avatar dead, replicates the kill frame to everyone, emits
// "died" and schedules the automatic respawn. Killing a dead avatar is a
// no-op: one death, one respawn.
func (p *Player) Kill() *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	if !p.alive {
		return ResolvedDeferred(nil)
	}
	p.health = 0
	p.alive = false
	pkt := proto.MakeKillPacket(p.netId, 1)
	defer pkt.Release()
	d := p.world.gw.Broadcast(pkt)
	p.Emit("died")
	p.AddCallback(consts.RESPAWN_DELAY, func() {
		p.Respawn()
	})
	return d
}

// Respawn restores health and position and replicates the revival
func (p *Player) Respawn() *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.health = p.maxHealth
	p.alive = true
	p.position = p.spawnPosition
	pkt := proto.MakeKillPacket(p.netId, 0)
	d1 := p.world.gw.Broadcast(pkt)
	pkt.Release()
	d2 := p.broadcastAttr("position", formatVector(p.position))
	p.Emit("respawn")
	return CombineDeferreds([]*Deferred{d1, d2})
}

// SetTeam assigns the avatar to a team (nil leaves any team). Membership is
// derived: World.PlayersInTeam scans players, no list is kept on the team.
func (p *Player) SetTeam(t *Team) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.team = t
	teamId := uint32(0)
	if t != nil {
		teamId = t.netId
	}
	return p.broadcastAttr("team", formatUint(teamId))
}

// Message sends a server-styled chat line to this player only; senderNetId 0
// marks a server message.
func (p *Player) Message(msg string) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	pkt := proto.MakeChatPacket(0, msg)
	defer pkt.Release()
	return p.client.Push(pkt)
}

// Prompt is a private message from another entity to this player only
func (p *Player) Prompt(fromNetId uint32, msg string) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	pkt := proto.MakeChatPacket(fromNetId, msg)
	defer pkt.Release()
	return p.client.Push(pkt)
}

// AllowChat applies the sliding-window chat rate gate. A message is allowed
// when fewer than CHAT_RATE_MAX_MESSAGES were sent within CHAT_RATE_WINDOW.
func (p *Player) AllowChat(now time.Time) bool {
	cutoff := now.Add(-consts.CHAT_RATE_WINDOW)
	kept := p.chatTimes[:0]
	for _, t := range p.chatTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.chatTimes = kept
	if len(p.chatTimes) >= consts.CHAT_RATE_MAX_MESSAGES {
		return false
	}
	p.chatTimes = append(p.chatTimes, now)
	return true
}

// Block hides chat from the given user id; blocked ids are user ids, never
// entity references, since blocked users may not be connected right now.
func (p *Player) Block(userId uint32) {
	p.blocked[userId] = struct{}{}
}

// Unblock removes a user id from the block list
func (p *Player) Unblock(userId uint32) {
	delete(p.blocked, userId)
}

// HasBlocked reports whether the given user id is blocked
func (p *Player) HasBlocked(userId uint32) bool {
	_, ok := p.blocked[userId]
	return ok
}

// Kick delivers a reason message best-effort and closes the connection
func (p *Player) Kick(reason string) {
	p.client.Kick(reason)
}

// Inventory returns the ordered tool inventory
func (p *Player) Inventory() []*Tool {
	return p.inventory
}

// AddTool appends a tool to the inventory and replicates it to the owning
// client. The tool keeps its inventory slot for the equip protocol.
func (p *Player) AddTool(t *Tool) *Deferred {
	if p.destroyed || t.destroyed {
		return destroyedDeferred()
	}
	t.owner = p
	t.slot = len(p.inventory)
	p.inventory = append(p.inventory, t)
	pkt := t.makeToolPacket(toolOpAdd)
	defer pkt.Release()
	return p.client.Push(pkt)
}

// RemoveTool removes a tool from the inventory, unequipping it first
func (p *Player) RemoveTool(t *Tool) *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	if p.equipped == t {
		p.Unequip()
	}
	for i, x := range p.inventory {
		if x == t {
			t.owner = nil
			p.inventory = append(p.inventory[:i], p.inventory[i+1:]...)
			for j := i; j < len(p.inventory); j++ {
				p.inventory[j].slot = j
			}
			pkt := t.makeToolPacket(toolOpRemove)
			defer pkt.Release()
			return p.client.Push(pkt)
		}
	}
	return ResolvedDeferred(nil)
}

// Equip makes the tool the held item, emitting its equipped event
func (p *Player) Equip(t *Tool) *Deferred {
	if p.destroyed || t.destroyed {
		return destroyedDeferred()
	}
	if p.equipped == t {
		return ResolvedDeferred(nil)
	}
	if p.equipped != nil {
		p.Unequip()
	}
	p.equipped = t
	pkt := t.makeToolPacket(toolOpEquip)
	defer pkt.Release()
	d := p.client.Push(pkt)
	t.Emit("equipped", p)
	return d
}

// Unequip clears the held item, emitting its unequipped event
func (p *Player) Unequip() *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	t := p.equipped
	if t == nil {
		return ResolvedDeferred(nil)
	}
	p.equipped = nil
	pkt := t.makeToolPacket(toolOpUnequip)
	defer pkt.Release()
	d := p.client.Push(pkt)
	t.Emit("unequipped", p)
	return d
}

// Destroy tears the avatar down on connection close: de-index, drop team
// membership, cancel timers and listeners, announce the departure to peers.
func (p *Player) Destroy() *Deferred {
	if p.destroyed {
		return destroyedDeferred()
	}
	p.team = nil
	p.world.removePlayer(p.netId)
	except := p.client
	p.markDestroyed()
	pkt := proto.MakeRemovePlayerPacket(p.netId)
	defer pkt.Release()
	return p.world.gw.BroadcastExcept(except, pkt)
}

func (p *Player) makeFigurePacket(mask uint16) *netutil.Packet {
	pkt := proto.AllocPacket(proto.PK_FIGURE)
	pkt.AppendUint32(p.netId)
	pkt.AppendUint16(mask)
	if mask&figureHeadColor != 0 {
		pkt.AppendVarStr(p.colors.Head)
	}
	if mask&figureTorsoColor != 0 {
		pkt.AppendVarStr(p.colors.Torso)
	}
	if mask&figureLeftArmColor != 0 {
		pkt.AppendVarStr(p.colors.LeftArm)
	}
	if mask&figureRightArmColor != 0 {
		pkt.AppendVarStr(p.colors.RightArm)
	}
	if mask&figureLeftLegColor != 0 {
		pkt.AppendVarStr(p.colors.LeftLeg)
	}
	if mask&figureRightLegColor != 0 {
		pkt.AppendVarStr(p.colors.RightLeg)
	}
	if mask&figureHat1 != 0 {
		pkt.AppendVarStr(p.refs.hat1)
	}
	if mask&figureHat2 != 0 {
		pkt.AppendVarStr(p.refs.hat2)
	}
	if mask&figureHat3 != 0 {
		pkt.AppendVarStr(p.refs.hat3)
	}
	if mask&figureFace != 0 {
		pkt.AppendVarStr(p.refs.face)
	}
	if mask&figureShirt != 0 {
		pkt.AppendVarStr(p.refs.shirt)
	}
	if mask&figurePants != 0 {
		pkt.AppendVarStr(p.refs.pants)
	}
	if mask&figureTshirt != 0 {
		pkt.AppendVarStr(p.refs.tshirt)
	}
	return pkt
}
