package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/binutil"
	"github.com/brickhost/brickd/engine/config"
	"github.com/brickhost/brickd/engine/opmon"
	"github.com/brickhost/brickd/mapfile"
	"github.com/brickhost/brickd/server"
)

var args struct {
	configFile      string
	logLevel        string
	runInDaemonMode bool
}

var signalChan = make(chan os.Signal, 1)

func parseArgs() {
	flag.StringVar(&args.configFile, "configfile", "", "set config file path")
	flag.StringVar(&args.logLevel, "log", "", "override log level")
	flag.BoolVar(&args.runInDaemonMode, "d", false, "run in daemon mode")
	flag.Parse()
}

func setupSignals(gs *server.GameServer) {
	bhlog.Infof("Setup signals ...")
	signal.Ignore(syscall.Signal(10), syscall.Signal(12), syscall.SIGPIPE, syscall.SIGHUP)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			sig := <-signalChan
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				bhlog.Infof("Terminating server ...")
				gs.Terminate()
				gs.WaitTerminated()
				bhlog.Infof("Server terminated gracefully.")
				os.Exit(0)
			} else {
				bhlog.Errorf("unexpected signal: %s", sig)
			}
		}
	}()
}

func main() {
	rand.Seed(time.Now().UnixNano())
	parseArgs()

	if args.runInDaemonMode {
		daemoncontext := binutil.Daemonize()
		defer daemoncontext.Release()
	}

	if args.configFile != "" {
		config.SetConfigFile(args.configFile)
	}

	cfg := config.GetServer()
	if cfg.GoMaxProcs > 0 {
		bhlog.Infof("SET GOMAXPROCS = %d", cfg.GoMaxProcs)
		runtime.GOMAXPROCS(cfg.GoMaxProcs)
	}

	logLevel := args.logLevel
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	binutil.SetupLogging("brickd", logLevel, cfg.LogFile, cfg.LogStderr)
	bhlog.Infof("Config: %s", config.DumpPretty(cfg))

	binutil.SetupHTTPServer(cfg.HTTPIp, cfg.HTTPPort, nil)
	opmon.StartProcessStatsCollector(context.Background(), time.Minute)

	gs := server.NewGameServer(cfg)

	if cfg.MapFile != "" {
		desc, err := mapfile.Load(cfg.MapFile)
		if err != nil {
			bhlog.Fatalf("map %s not loaded: %v", cfg.MapFile, err)
		}
		desc.ApplyTo(gs.World)
	}

	setupSignals(gs)
	gs.Run()
}
