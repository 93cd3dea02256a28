package config

import (
	"testing"

	"github.com/bmizerany/assert"

	"github.com/brickhost/brickd/engine/bhlog"
)

func init() {
	SetConfigFile("../../brickd.ini.sample")
}

func TestLoad(t *testing.T) {
	config := Get()
	bhlog.Debugf("brickd config: \n%s", DumpPretty(config))
	if config == nil {
		t.FailNow()
	}
	if config.Server.Ip == "" {
		t.Errorf("server ip not found")
	}
	if config.Server.Port == 0 {
		t.Errorf("server port not found")
	}
}

func TestGetServer(t *testing.T) {
	sc := GetServer()
	assert.Equal(t, 42480, sc.Port)
	assert.Equal(t, false, sc.CompressConnection)
	assert.Equal(t, "2m0s", sc.KeepaliveTimeout.String())
	assert.Equal(t, "100ms", sc.TouchTickInterval.String())
}

func TestGetKVDB(t *testing.T) {
	kc := GetKVDB()
	assert.T(t, kc != nil, "kvdb config is nil")
	assert.Equal(t, "redis", kc.Type)
}

func TestGetPlatform(t *testing.T) {
	pc := GetPlatform()
	// sample leaves base_url unset, which selects offline mode
	assert.Equal(t, "", pc.BaseUrl)
	assert.Equal(t, "10s", pc.Timeout.String())
}
