package config

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/consts"
)

const (
	_DEFAULT_CONFIG_FILE  = "brickd.ini"
	_DEFAULT_LOCALHOST_IP = "127.0.0.1"
	_DEFAULT_HTTP_IP      = "127.0.0.1"
	_DEFAULT_LOG_LEVEL    = "debug"
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	brickdConfig   *BrickdConfig
	configLock     sync.Mutex
)

// ServerConfig defines fields of the [server] config section
type ServerConfig struct {
	Ip                 string
	Port               int
	KCPPort            int
	HTTPIp             string
	HTTPPort           int
	LogFile            string
	LogStderr          bool
	LogLevel           string
	GoMaxProcs         int
	CompressConnection bool
	KeepaliveTimeout   time.Duration
	TouchTickInterval  time.Duration
	LocalBrickTouch    bool
	MapFile            string
}

// KVDBConfig defines fields of the [kvdb] config section
type KVDBConfig struct {
	Type       string
	Host       string // redis host
	Url        string // mongodb url
	DB         string
	Collection string
}

// PlatformConfig defines fields of the [platform] config section
type PlatformConfig struct {
	BaseUrl      string
	AssetBaseUrl string
	Timeout      time.Duration
}

// BrickdConfig defines the total config file structure
type BrickdConfig struct {
	Server   ServerConfig
	KVDB     KVDBConfig
	Platform PlatformConfig
}

// SetConfigFile sets the config file path
func SetConfigFile(f string) {
	configFilePath = f
	brickdConfig = nil
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total config
func Get() *BrickdConfig {
	configLock.Lock()
	defer configLock.Unlock()

	if brickdConfig == nil {
		brickdConfig = readConfig()
	}
	return brickdConfig
}

// GetServer returns the [server] config section
func GetServer() *ServerConfig {
	return &Get().Server
}

// GetKVDB returns the [kvdb] config section
func GetKVDB() *KVDBConfig {
	return &Get().KVDB
}

// GetPlatform returns the [platform] config section
func GetPlatform() *PlatformConfig {
	return &Get().Platform
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

func readConfig() *BrickdConfig {
	config := &BrickdConfig{}
	bhlog.Infof("Using config file: %s", configFilePath)
	iniFile, err := ini.Load(configFilePath)
	if err != nil {
		bhlog.Panicf("read config %s failed: %s", configFilePath, err)
	}

	readServerConfig(iniFile.Section("server"), &config.Server)
	readKVDBConfig(iniFile.Section("kvdb"), &config.KVDB)
	readPlatformConfig(iniFile.Section("platform"), &config.Platform)

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		if secName == "default" || secName == "server" || secName == "kvdb" || secName == "platform" {
			continue
		}
		bhlog.Errorf("unknown section: %s", sec.Name())
	}
	return config
}

func readServerConfig(sec *ini.Section, sc *ServerConfig) {
	sc.Ip = "0.0.0.0"
	sc.Port = 42480
	sc.KCPPort = 0 // kcp not enabled by default
	sc.HTTPIp = _DEFAULT_HTTP_IP
	sc.HTTPPort = 0 // pprof not enabled by default
	sc.LogFile = "brickd.log"
	sc.LogStderr = true
	sc.LogLevel = _DEFAULT_LOG_LEVEL
	sc.GoMaxProcs = 0
	sc.CompressConnection = false
	sc.KeepaliveTimeout = consts.DEFAULT_KEEPALIVE_TIMEOUT
	sc.TouchTickInterval = consts.DEFAULT_TOUCH_TICK_INTERVAL
	sc.LocalBrickTouch = false
	sc.MapFile = ""

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "ip" {
			sc.Ip = key.MustString(sc.Ip)
		} else if name == "port" {
			sc.Port = key.MustInt(sc.Port)
		} else if name == "kcp_port" {
			sc.KCPPort = key.MustInt(sc.KCPPort)
		} else if name == "http_ip" {
			sc.HTTPIp = key.MustString(sc.HTTPIp)
		} else if name == "http_port" {
			sc.HTTPPort = key.MustInt(sc.HTTPPort)
		} else if name == "log_file" {
			sc.LogFile = key.MustString(sc.LogFile)
		} else if name == "log_stderr" {
			sc.LogStderr = key.MustBool(sc.LogStderr)
		} else if name == "log_level" {
			sc.LogLevel = key.MustString(sc.LogLevel)
		} else if name == "gomaxprocs" {
			sc.GoMaxProcs = key.MustInt(sc.GoMaxProcs)
		} else if name == "compress_connection" {
			sc.CompressConnection = key.MustBool(sc.CompressConnection)
		} else if name == "keepalive_timeout_s" {
			sc.KeepaliveTimeout = time.Second * time.Duration(key.MustInt(int(sc.KeepaliveTimeout/time.Second)))
		} else if name == "touch_tick_ms" {
			sc.TouchTickInterval = time.Millisecond * time.Duration(key.MustInt(int(sc.TouchTickInterval/time.Millisecond)))
		} else if name == "local_brick_touch" {
			sc.LocalBrickTouch = key.MustBool(sc.LocalBrickTouch)
		} else if name == "map_file" {
			sc.MapFile = key.MustString(sc.MapFile)
		} else {
			bhlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readKVDBConfig(sec *ini.Section, kc *KVDBConfig) {
	kc.Type = ""
	kc.Host = _DEFAULT_LOCALHOST_IP + ":6379"
	kc.Url = ""
	kc.DB = "0"
	kc.Collection = "bans"

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			kc.Type = key.MustString(kc.Type)
		} else if name == "host" {
			kc.Host = key.MustString(kc.Host)
		} else if name == "url" {
			kc.Url = key.MustString(kc.Url)
		} else if name == "db" {
			kc.DB = key.MustString(kc.DB)
		} else if name == "collection" {
			kc.Collection = key.MustString(kc.Collection)
		} else {
			bhlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if kc.Type == "mongodb" && kc.Url == "" {
		bhlog.Fatalf("kvdb type is mongodb, but url is not set")
	}
}

func readPlatformConfig(sec *ini.Section, pc *PlatformConfig) {
	// empty base_url means offline mode: tokens are accepted unverified
	pc.BaseUrl = ""
	pc.AssetBaseUrl = ""
	pc.Timeout = time.Second * 10

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "base_url" {
			pc.BaseUrl = key.MustString(pc.BaseUrl)
		} else if name == "asset_base_url" {
			pc.AssetBaseUrl = key.MustString(pc.AssetBaseUrl)
		} else if name == "timeout_s" {
			pc.Timeout = time.Second * time.Duration(key.MustInt(int(pc.Timeout/time.Second)))
		} else {
			bhlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}
