package entity

import (
	"testing"
)

func TestNetIdMonotonicPerKind(t *testing.T) {
	w, _, _ := newTestWorld(1)

	var ids []uint32
	for i := 0; i < 50; i++ {
		b := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
		ids = append(ids, b.NetId())
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("brick netIds not strictly increasing: %d after %d", ids[i], ids[i-1])
		}
	}
	if ids[0] < FIRST_RUNTIME_NETID {
		t.Fatalf("runtime netId %d below runtime range", ids[0])
	}
}

func TestNetIdNeverReusedAfterDestroy(t *testing.T) {
	w, _, _ := newTestWorld(1)

	b1 := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	id1 := b1.NetId()
	b1.Destroy()

	b2 := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	if b2.NetId() <= id1 {
		t.Fatalf("netId %d reused or regressed after destroy of %d", b2.NetId(), id1)
	}
}

func TestNetIdCountersIndependentPerKind(t *testing.T) {
	w, _, clients := newTestWorld(1)

	b := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	p := w.CreatePlayer(clients[0], 1, "ada", 0)
	bot := w.NewBot("guard")

	// kinds draw from separate counters; ids may collide across kinds but
	// each kind's sequence is independent
	pb := w.CreatePlayer(newFakeClient("10.0.0.9"), 2, "bob", 0)
	if pb.NetId() <= p.NetId() {
		t.Fatalf("player counter not increasing: %d after %d", pb.NetId(), p.NetId())
	}
	b2 := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	if b2.NetId() != b.NetId()+1 {
		t.Fatalf("brick counter influenced by other kinds: %d after %d", b2.NetId(), b.NetId())
	}
	_ = bot
}

func TestLoadNetIdRange(t *testing.T) {
	w, _, _ := newTestWorld(1)
	b := w.LoadBrick(Vector3{}, Vector3{1, 1, 1})
	if b.NetId() >= FIRST_RUNTIME_NETID {
		t.Fatalf("load netId %d not below runtime range", b.NetId())
	}
}
