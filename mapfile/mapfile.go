// Package mapfile loads world descriptions and populates a world with the
// bricks, teams, spawn points and environment they define. Loading happens
// before the server starts accepting connections: loaded entities get netIds
// from the load range and joiners receive them through the initial sync.
package mapfile

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/xiaonanln/typeconv"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/entity"
)

// BrickDesc is one scenery piece in a map description
type BrickDesc struct {
	Position   [3]float32 `msgpack:"p"`
	Scale      [3]float32 `msgpack:"s"`
	Rotation   [3]float32 `msgpack:"r"`
	Color      string     `msgpack:"c"`
	Visibility float32    `msgpack:"v"`
	Collision  bool       `msgpack:"co"`
	Shape      string     `msgpack:"sh"`
	Model      uint32     `msgpack:"m"`
	Clickable  bool       `msgpack:"cl"`
	ClickDist  float32    `msgpack:"cd"`
}

// TeamDesc is one team in a map description
type TeamDesc struct {
	Name  string `msgpack:"n"`
	Color string `msgpack:"c"`
}

// Description is a parsed map file
type Description struct {
	Name        string       `msgpack:"name"`
	Environment interface{}  `msgpack:"env"`
	Bricks      []BrickDesc  `msgpack:"bricks"`
	SpawnPoints [][3]float32 `msgpack:"spawns"`
	Teams       []TeamDesc   `msgpack:"teams"`
	Settings    interface{}  `msgpack:"settings"`
}

// Load parses a map file without touching any world state
func Load(path string) (*Description, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read map %s", path)
	}

	desc := &Description{}
	if err := netutil.MSG_PACKER.UnpackMsg(data, desc); err != nil {
		return nil, errors.Wrapf(err, "parse map %s", path)
	}
	return desc, nil
}

func vec(f [3]float32) entity.Vector3 {
	return entity.Vector3{X: entity.Coord(f[0]), Y: entity.Coord(f[1]), Z: entity.Coord(f[2])}
}

// ApplyTo populates the world from the description. Call before serving:
// nothing is replicated here, joiners get the result from the initial sync.
func (desc *Description) ApplyTo(w *entity.World) {
	w.SetEnvironment(desc.environment())

	for _, sp := range desc.SpawnPoints {
		w.AddSpawnPoint(vec(sp))
	}

	for _, td := range desc.Teams {
		w.NewTeam(td.Name, td.Color)
	}

	for i, bd := range desc.Bricks {
		b := w.LoadBrick(vec(bd.Position), vec(bd.Scale))
		b.SetRotation(vec(bd.Rotation))
		if bd.Color != "" {
			b.SetColor(bd.Color)
		}
		if bd.Visibility > 0 {
			b.SetVisibility(bd.Visibility)
		}
		b.SetCollision(bd.Collision)
		if bd.Shape != "" {
			b.SetShape(bd.Shape)
		}
		if bd.Clickable {
			b.SetClickable(true, entity.Coord(bd.ClickDist))
		}
		if bd.Model != 0 {
			// resolution lands once the game loop ticks; the brick keeps
			// its plain shape if the model never resolves
			d := b.SetModel(bd.Model)
			go func(i int, model uint32) {
				if err := d.Wait(); err != nil {
					bhlog.Warnf("map brick %d: model %d not resolved: %v", i, model, err)
				}
			}(i, bd.Model)
		}
	}

	bhlog.Infof("map %s applied: %d bricks, %d teams, %d spawn points",
		desc.Name, len(desc.Bricks), len(desc.Teams), len(desc.SpawnPoints))
}

// environment reads the env section with permissive typing: map authors
// hand-edit these files and numbers arrive as any integer width
func (desc *Description) environment() entity.Environment {
	env := entity.Environment{
		Sky:          "#71b1e6",
		Ambient:      "#ffffff",
		SunIntensity: 400,
		Weather:      "sun",
		BaseSize:     100,
	}
	if desc.Environment == nil {
		return env
	}

	m := typeconv.MapStringAnything(desc.Environment)
	if s, ok := m["sky"].(string); ok {
		env.Sky = s
	}
	if s, ok := m["ambient"].(string); ok {
		env.Ambient = s
	}
	if v, ok := m["sunIntensity"]; ok {
		env.SunIntensity = uint32(typeconv.Int(v))
	}
	if s, ok := m["weather"].(string); ok {
		env.Weather = s
	}
	if v, ok := m["baseSize"]; ok {
		env.BaseSize = uint32(typeconv.Int(v))
	}
	return env
}

// Setting looks up one entry of the free-form settings section
func (desc *Description) Setting(name string) (interface{}, bool) {
	if desc.Settings == nil {
		return nil, false
	}
	v, ok := typeconv.MapStringAnything(desc.Settings)[name]
	return v, ok
}
