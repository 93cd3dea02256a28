package mapfile

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"

	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/entity"
)

type nullGateway struct{}

func (nullGateway) Broadcast(pkt *netutil.Packet) *entity.Deferred {
	return entity.ResolvedDeferred(nil)
}

func (nullGateway) BroadcastExcept(except entity.Client, pkt *netutil.Packet) *entity.Deferred {
	return entity.ResolvedDeferred(nil)
}

type stubResolver struct{}

func (stubResolver) ResolveAsset(assetId uint32) (string, error) {
	return fmt.Sprintf("asset://%d", assetId), nil
}

func writeMap(t *testing.T, desc *Description) string {
	data, err := netutil.MSG_PACKER.PackMsg(desc, nil)
	if err != nil {
		t.Fatalf("pack map: %v", err)
	}
	path := filepath.Join(t.TempDir(), "world.map")
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write map: %v", err)
	}
	return path
}

func TestLoadRoundTrip(t *testing.T) {
	path := writeMap(t, &Description{
		Name: "fort",
		Environment: map[string]interface{}{
			"sky":          "#000000",
			"sunIntensity": 250,
		},
		Bricks: []BrickDesc{
			{Position: [3]float32{1, 0, 2}, Scale: [3]float32{4, 1, 4}, Color: "#ff0000", Visibility: 1, Collision: true, Shape: "cube"},
		},
		SpawnPoints: [][3]float32{{0, 5, 0}},
		Teams:       []TeamDesc{{Name: "red", Color: "#ff0000"}},
	})

	desc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, "fort", desc.Name)
	assert.Equal(t, 1, len(desc.Bricks))
	assert.Equal(t, "red", desc.Teams[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.map"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.map")
	if err := ioutil.WriteFile(path, []byte("\xc1 this is not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for undecodable file")
	}
}

func TestApplyToPopulatesWorld(t *testing.T) {
	w := entity.NewWorld(nullGateway{}, stubResolver{})
	desc := &Description{
		Name: "fort",
		Environment: map[string]interface{}{
			"sky":      "#101010",
			"baseSize": 200,
		},
		Bricks: []BrickDesc{
			{Position: [3]float32{1, 0, 2}, Scale: [3]float32{4, 1, 4}, Color: "#ff0000", Visibility: 0.5, Collision: true},
			{Position: [3]float32{9, 0, 9}, Scale: [3]float32{2, 2, 2}, Clickable: true, ClickDist: 10},
		},
		SpawnPoints: [][3]float32{{0, 5, 0}, {10, 5, 10}},
		Teams:       []TeamDesc{{Name: "red", Color: "#ff0000"}, {Name: "blue", Color: "#0000ff"}},
	}

	desc.ApplyTo(w)

	bricks := w.Bricks()
	assert.Equal(t, 2, len(bricks))
	for _, b := range bricks {
		if b.NetId() >= entity.FIRST_RUNTIME_NETID {
			t.Fatalf("map brick got runtime netId %d", b.NetId())
		}
	}
	assert.Equal(t, 2, len(w.Teams()))

	env := w.Environment()
	assert.Equal(t, "#101010", env.Sky)
	assert.Equal(t, uint32(200), env.BaseSize)
	assert.Equal(t, "sun", env.Weather) // default survives a partial env section

	first := w.NextSpawnPoint()
	second := w.NextSpawnPoint()
	third := w.NextSpawnPoint()
	assert.Equal(t, entity.Vector3{Y: 5}, first)
	assert.Equal(t, entity.Vector3{X: 10, Y: 5, Z: 10}, second)
	assert.Equal(t, first, third) // cycles
}

func TestApplyEnvironmentDefaultsWhenAbsent(t *testing.T) {
	w := entity.NewWorld(nullGateway{}, stubResolver{})
	(&Description{}).ApplyTo(w)
	env := w.Environment()
	assert.Equal(t, "#71b1e6", env.Sky)
	assert.Equal(t, uint32(400), env.SunIntensity)
}
