package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/brickhost/brickd/engine/proto"
)

func TestBrickDestroyedSilence(t *testing.T) {
	w, _, clients := newTestWorld(2)

	b := w.NewBrick(Vector3{0, 0, 0}, Vector3{1, 1, 1})
	b.SetColor("#ff0000")
	before := clients[0].frameCount()

	if err := b.Destroy().Wait(); err != nil {
		t.Fatalf("destroy delivery failed: %v", err)
	}
	afterDestroy := clients[0].frameCount()
	assert.Equal(t, before+1, afterDestroy) // exactly the delete frame

	// mutations on the destroyed brick fail without sending
	for i := 0; i < 3; i++ {
		err := b.SetPosition(Vector3{Coord(i), 0, 0}).Wait()
		assert.Equal(t, ErrDestroyed, err)
	}
	assert.Equal(t, ErrDestroyed, b.Destroy().Wait())
	assert.Equal(t, afterDestroy, clients[0].frameCount())
	assert.Equal(t, afterDestroy, clients[1].frameCount())

	if w.GetBrick(b.NetId()) != nil {
		t.Fatal("destroyed brick still indexed")
	}
}

func TestLocalBrickScoping(t *testing.T) {
	w, _, clients := newTestWorld(3)
	owner := clients[0]

	lb := w.NewLocalBrick(owner, Vector3{}, Vector3{1, 1, 1})
	for i := 0; i < 10; i++ {
		if err := lb.SetPosition(Vector3{Coord(i), 0, 0}).Wait(); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	// create + 10 updates on the owner, zero frames anywhere else
	assert.Equal(t, 11, owner.frameCount())
	assert.Equal(t, 0, clients[1].frameCount())
	assert.Equal(t, 0, clients[2].frameCount())

	// a local brick never enters the shared index
	if w.GetBrick(lb.NetId()) != nil {
		t.Fatal("local brick found in world index")
	}
	assert.Equal(t, 0, len(w.Bricks()))
}

func TestBrickCreateBroadcasts(t *testing.T) {
	w, _, clients := newTestWorld(2)
	w.NewBrick(Vector3{1, 2, 3}, Vector3{2, 2, 2})

	for _, c := range clients {
		assert.Equal(t, 1, c.countKind(proto.PK_BRICK_SINGLE))
	}
	assert.Equal(t, 1, len(w.Bricks()))
}

func TestBrickModelResolutionFailure(t *testing.T) {
	gw := &fakeGateway{}
	c := newFakeClient("10.0.0.1")
	gw.add(c)
	w := NewWorld(gw, fakeResolver{fail: true})

	b := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	before := c.frameCount()

	err := b.SetModel(77).Wait()
	if err == nil {
		t.Fatal("SetModel succeeded with a failing resolver")
	}
	// no partial frame was sent and the model is unchanged
	assert.Equal(t, before, c.frameCount())
	assert.Equal(t, uint32(0), b.model)
}

// gatedResolver blocks every resolution until the gate is closed
type gatedResolver struct {
	gate chan struct{}
}

func (r gatedResolver) ResolveAsset(assetId uint32) (string, error) {
	<-r.gate
	return fmt.Sprintf("asset://%d", assetId), nil
}

func TestSetModelReturnsBeforeResolution(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{}
	c := newFakeClient("10.0.0.1")
	gw.add(c)
	w := NewWorld(gw, gatedResolver{gate})

	b := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	before := c.frameCount()

	start := time.Now()
	d := b.SetModel(77)
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("SetModel blocked its caller for %s", waited)
	}
	if d.Err() != nil {
		t.Fatalf("mutation settled before resolution: %v", d.Err())
	}
	assert.Equal(t, before, c.frameCount())

	close(gate)
	if err := d.Wait(); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	assert.Equal(t, before+1, c.frameCount())
	assert.Equal(t, uint32(77), b.model)
}

func TestBrickVisibilityClamped(t *testing.T) {
	w, _, _ := newTestWorld(1)
	b := w.NewBrick(Vector3{}, Vector3{1, 1, 1})

	b.SetVisibility(2.5)
	assert.Equal(t, float32(1), b.Visibility())
	b.SetVisibility(-3)
	assert.Equal(t, float32(0), b.Visibility())
}

func TestClearMap(t *testing.T) {
	w, _, clients := newTestWorld(2)
	b1 := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	b2 := w.NewBrick(Vector3{}, Vector3{1, 1, 1})
	before := clients[0].frameCount()

	if err := w.ClearMap().Wait(); err != nil {
		t.Fatalf("clear map failed: %v", err)
	}

	// one wipe frame, no per-brick deletes
	assert.Equal(t, before+1, clients[0].frameCount())
	assert.Equal(t, 1, clients[0].countKind(proto.PK_CLEAR_MAP))
	assert.Equal(t, 0, clients[0].countKind(proto.PK_DELETE_BRICK))
	assert.Equal(t, 0, len(w.Bricks()))
	assert.Equal(t, true, b1.Destroyed())
	assert.Equal(t, true, b2.Destroyed())
}
