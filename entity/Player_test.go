package entity

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/proto"
)

func TestPlayerDestroyAnnouncesToPeersOnly(t *testing.T) {
	w, _, clients := newTestWorld(2)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	w.CreatePlayer(clients[1], 2, "bob", 0)

	if err := p.Destroy().Wait(); err != nil {
		t.Fatalf("destroy delivery failed: %v", err)
	}

	assert.Equal(t, 0, clients[0].countKind(proto.PK_REMOVE_PLAYER))
	assert.Equal(t, 1, clients[1].countKind(proto.PK_REMOVE_PLAYER))
	if w.GetPlayer(p.NetId()) != nil {
		t.Fatal("destroyed player still indexed")
	}
	assert.Equal(t, ErrDestroyed, p.SetPosition(Vector3{1, 0, 0}).Wait())
}

func TestPlayerKillAndRespawn(t *testing.T) {
	w, _, clients := newTestWorld(2)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	p.SetSpawnPosition(Vector3{5, 0, 5})
	p.position = Vector3{1, 1, 1}

	died := 0
	p.On("died", func(...interface{}) { died += 1 })

	p.Damage(40)
	assert.Equal(t, int32(60), p.Health())
	assert.Equal(t, true, p.Alive())
	assert.Equal(t, 0, died)

	p.Damage(100)
	assert.Equal(t, int32(0), p.Health())
	assert.Equal(t, false, p.Alive())
	assert.Equal(t, 1, died)
	assert.Equal(t, 1, clients[1].countKind(proto.PK_KILL))

	p.Respawn()
	assert.Equal(t, p.MaxHealth(), p.Health())
	assert.Equal(t, true, p.Alive())
	assert.Equal(t, Vector3{5, 0, 5}, p.Position())
	assert.Equal(t, 2, clients[1].countKind(proto.PK_KILL))
}

func TestKillWhileDeadIsNoop(t *testing.T) {
	w, _, clients := newTestWorld(2)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)

	died := 0
	p.On("died", func(...interface{}) { died += 1 })

	p.Kill()
	assert.Equal(t, 1, clients[1].countKind(proto.PK_KILL))

	if err := p.Kill().Wait(); err != nil {
		t.Fatalf("second kill: %v", err)
	}
	// no second kill frame, no second death event
	assert.Equal(t, 1, clients[1].countKind(proto.PK_KILL))
	assert.Equal(t, 1, died)
	assert.Equal(t, false, p.Alive())
}

func TestPlayerHealthClamped(t *testing.T) {
	w, _, clients := newTestWorld(1)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)

	p.SetHealth(10000)
	assert.Equal(t, p.MaxHealth(), p.Health())
}

func TestChatRateGate(t *testing.T) {
	w, _, clients := newTestWorld(1)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)

	now := time.Now()
	for i := 0; i < consts.CHAT_RATE_MAX_MESSAGES; i++ {
		assert.Equal(t, true, p.AllowChat(now))
	}
	assert.Equal(t, false, p.AllowChat(now))

	// the window slides: old messages stop counting
	later := now.Add(consts.CHAT_RATE_WINDOW + time.Second)
	assert.Equal(t, true, p.AllowChat(later))
}

func TestChatRelaySkipsBlockers(t *testing.T) {
	w, _, clients := newTestWorld(3)
	sender := w.CreatePlayer(clients[0], 1, "ada", 0)
	blocker := w.CreatePlayer(clients[1], 2, "bob", 0)
	w.CreatePlayer(clients[2], 3, "eve", 0)

	blocker.Block(sender.UserId())
	if err := w.RelayChat(sender, "hello").Wait(); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	assert.Equal(t, 1, clients[0].countKind(proto.PK_CHAT)) // sender sees own chat
	assert.Equal(t, 0, clients[1].countKind(proto.PK_CHAT))
	assert.Equal(t, 1, clients[2].countKind(proto.PK_CHAT))

	blocker.Unblock(sender.UserId())
	w.RelayChat(sender, "again").Wait()
	assert.Equal(t, 1, clients[1].countKind(proto.PK_CHAT))
}

func TestTeamDerivedMembership(t *testing.T) {
	w, _, clients := newTestWorld(2)
	p1 := w.CreatePlayer(clients[0], 1, "ada", 0)
	p2 := w.CreatePlayer(clients[1], 2, "bob", 0)

	red := w.NewTeam("red", "#ff0000")
	assert.Equal(t, 0, len(red.Members()))

	p1.SetTeam(red)
	p2.SetTeam(red)
	assert.Equal(t, 2, len(red.Members()))

	p2.SetTeam(nil)
	assert.Equal(t, 1, len(red.Members()))

	// membership is derived, not stored: a disconnecting member vanishes
	p1.Destroy()
	assert.Equal(t, 0, len(red.Members()))
}

func TestInventoryEquipLifecycle(t *testing.T) {
	w, _, clients := newTestWorld(1)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	sword := w.NewTool("sword")
	bow := w.NewTool("bow")

	var events []string
	sword.OnEquipped(func(*Player) { events = append(events, "equip sword") })
	sword.OnUnequipped(func(*Player) { events = append(events, "unequip sword") })
	bow.OnEquipped(func(*Player) { events = append(events, "equip bow") })

	p.AddTool(sword)
	p.AddTool(bow)
	assert.Equal(t, 0, sword.Slot())
	assert.Equal(t, 1, bow.Slot())
	assert.Equal(t, p, sword.Owner())

	p.Equip(sword)
	p.Equip(bow) // implicit unequip of the sword
	assert.Equal(t, []string{"equip sword", "unequip sword", "equip bow"}, events)
	assert.Equal(t, bow, p.Equipped())

	activated := 0
	bow.OnActivated(func(*Player) { activated += 1 })
	if err := bow.Activate(p); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	assert.Equal(t, 1, activated)

	p.RemoveTool(bow)
	if p.Equipped() != nil {
		t.Fatal("removed tool stayed equipped")
	}
	assert.Equal(t, 1, len(p.Inventory()))
	assert.Equal(t, 0, sword.Slot())
}

func TestOutfitAppliesAsSingleFrame(t *testing.T) {
	w, _, clients := newTestWorld(2)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	before := clients[1].countKind(proto.PK_FIGURE)

	err := p.NewOutfit().
		BodyColor("#101010").
		Hat1(501).
		Face(88).
		Apply().Wait()
	if err != nil {
		t.Fatalf("outfit apply failed: %v", err)
	}

	assert.Equal(t, before+1, clients[1].countKind(proto.PK_FIGURE))
	assert.Equal(t, "#101010", p.colors.Torso)
	assert.Equal(t, uint32(501), p.assets.Hat1)
	assert.Equal(t, "asset://501", p.refs.hat1)
	assert.Equal(t, "asset://88", p.refs.face)
}

func TestOutfitResolutionFailureSendsNothing(t *testing.T) {
	gw := &fakeGateway{}
	c := newFakeClient("10.0.0.1")
	gw.add(c)
	w := NewWorld(gw, fakeResolver{fail: true})
	p := w.CreatePlayer(c, 1, "ada", 0)
	before := c.frameCount()

	err := p.NewOutfit().Hat1(501).HeadColor("#123456").Apply().Wait()
	if err == nil {
		t.Fatal("apply succeeded with a failing resolver")
	}
	assert.Equal(t, before, c.frameCount())
	// nothing committed, colors included
	if p.colors.Head == "#123456" {
		t.Fatal("color committed despite failed apply")
	}
}

func TestEmptyOutfitIsNoop(t *testing.T) {
	w, _, clients := newTestWorld(1)
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	before := clients[0].frameCount()

	if err := p.NewOutfit().Apply().Wait(); err != nil {
		t.Fatalf("empty apply failed: %v", err)
	}
	assert.Equal(t, before, clients[0].frameCount())
}
