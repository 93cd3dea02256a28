package bhlog

import (
	"encoding/json"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is type of log levels
type Level = zapcore.Level

const (
	// DebugLevel level
	DebugLevel Level = Level(zap.DebugLevel)
	// InfoLevel level
	InfoLevel Level = Level(zap.InfoLevel)
	// WarnLevel level
	WarnLevel Level = Level(zap.WarnLevel)
	// ErrorLevel level
	ErrorLevel Level = Level(zap.ErrorLevel)
	// PanicLevel level
	PanicLevel Level = Level(zap.PanicLevel)
	// FatalLevel level
	FatalLevel Level = Level(zap.FatalLevel)
)

type logFormatFunc func(format string, args ...interface{})

var (
	// Debugf logs formatted debug message
	Debugf logFormatFunc
	// Infof logs formatted info message
	Infof logFormatFunc
	// Warnf logs formatted warn message
	Warnf logFormatFunc
	// Errorf logs formatted error message
	Errorf logFormatFunc
	// Panicf logs formatted message and panics
	Panicf logFormatFunc
	// Fatalf logs formatted message and terminates the process
	Fatalf logFormatFunc
	// Fatal logs message and terminates the process
	Fatal func(args ...interface{})
	// Panic logs message and panics
	Panic func(args ...interface{})

	cfg    zap.Config
	logger *zap.Logger
)

func init() {
	cfgJSON := []byte(`{
		"level": "debug",
		"outputPaths": ["stderr"],
		"errorOutputPaths": ["stderr"],
		"encoding": "console",
		"encoderConfig": {
			"messageKey": "message",
			"levelKey": "level",
			"levelEncoder": "lowercase"
		}
	}`)

	if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
		panic(err)
	}

	var err error
	logger, err = cfg.Build()
	if err != nil {
		panic(err)
	}
	setSugar(logger.Sugar())
}

// SetSource sets the component name of the logger
func SetSource(comp string) {
	logger = logger.With(zap.String("source", comp))
	setSugar(logger.Sugar())
}

// SetOutput redirects logging to the given writer (e.g. a rotating log
// file, stderr, or a MultiWriter over both)
func SetOutput(w io.Writer) {
	encCfg := zapcore.EncoderConfig{
		MessageKey:  "message",
		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), cfg.Level)
	logger = zap.New(core)
	setSugar(logger.Sugar())
}

// SetLevel sets the log level
func SetLevel(lv Level) {
	cfg.Level.SetLevel(lv)
}

// StringToLevel converts a level name to a Level, defaulting to debug
func StringToLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "panic":
		return PanicLevel
	case "fatal":
		return FatalLevel
	}
	Errorf("StringToLevel: unknown level: %s", s)
	return DebugLevel
}

// TraceError prints the stack and error
func TraceError(format string, args ...interface{}) {
	os.Stderr.Write(debug.Stack())
	Errorf(format, args...)
}

func setSugar(sugar *zap.SugaredLogger) {
	Debugf = sugar.Debugf
	Infof = sugar.Infof
	Warnf = sugar.Warnf
	Errorf = sugar.Errorf
	Panicf = sugar.Panicf
	Panic = sugar.Panic
	Fatalf = sugar.Fatalf
	Fatal = sugar.Fatal
}
