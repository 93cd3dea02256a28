package binutil

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/natefinch/lumberjack"
	"golang.org/x/net/websocket"

	"github.com/brickhost/brickd/engine/bhlog"
)

// SetupHTTPServer starts the debug HTTP server for go tool pprof and
// websockets; port 0 disables it
func SetupHTTPServer(ip string, port int, wsHandler func(ws *websocket.Conn)) {
	if port == 0 {
		bhlog.Infof("pprof server not enabled")
		return
	}

	httpHost := fmt.Sprintf("%s:%d", ip, port)
	bhlog.Infof("http server listening on %s", httpHost)
	bhlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", httpHost)
	bhlog.Infof("    go tool pprof http://%s/debug/pprof/heap", httpHost)
	bhlog.Infof("    go tool pprof http://%s/debug/pprof/profile", httpHost)

	if wsHandler != nil {
		http.Handle("/ws", websocket.Handler(wsHandler))
	}

	go http.ListenAndServe(httpHost, nil)
}

// SetupLogging configures the log system: source tag, level and outputs.
// The log file rotates by size and old rotations are compressed.
func SetupLogging(component string, logLevel string, logFile string, logStderr bool) {
	bhlog.SetSource(component)
	bhlog.SetLevel(bhlog.StringToLevel(logLevel))

	outputWriters := make([]io.Writer, 0, 2)
	if logFile != "" {
		logFileWriter := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 100,
			MaxAge:     30, // days
			Compress:   true,
		}

		logFileWriter.Rotate()
		outputWriters = append(outputWriters, logFileWriter)
	}

	if logStderr {
		outputWriters = append(outputWriters, os.Stderr)
	}

	if len(outputWriters) == 1 {
		bhlog.SetOutput(outputWriters[0])
	} else {
		bhlog.SetOutput(io.MultiWriter(outputWriters...))
	}
}
