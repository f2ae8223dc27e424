// Package wasmlog adapts zap into the colored, component-tagged logger the
// rest of the WASM execution core logs through, matching the conventions of
// pkg/logging.ColoredLogger but scoped to this core's own components and
// adding a dedicated security-event helper for hash/permission failures.
package wasmlog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	red           = "\033[31m"
	green         = "\033[32m"
	yellow        = "\033[33m"
	blue          = "\033[34m"
	magenta       = "\033[35m"
	cyan          = "\033[36m"
	white         = "\033[37m"
	gray          = "\033[90m"
	brightRed     = "\033[91m"
	brightYellow  = "\033[93m"
	brightMagenta = "\033[95m"
	brightWhite   = "\033[97m"
)

// Component tags a log line with the subsystem that emitted it.
type Component string

const (
	ComponentEngine     Component = "ENGINE"
	ComponentLoader     Component = "LOADER"
	ComponentCache      Component = "CACHE"
	ComponentPermission Component = "PERMISSION"
	ComponentHostCap    Component = "HOSTCAP"
	ComponentAdmin      Component = "ADMIN"
	ComponentStepAdapter Component = "STEPADAPTER"
)

func componentColor(c Component) string {
	switch c {
	case ComponentEngine:
		return blue
	case ComponentLoader:
		return brightMagenta
	case ComponentCache:
		return yellow
	case ComponentPermission:
		return magenta
	case ComponentHostCap:
		return cyan
	case ComponentAdmin:
		return green
	case ComponentStepAdapter:
		return white
	default:
		return white
	}
}

func levelColor(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return gray
	case zapcore.InfoLevel:
		return brightWhite
	case zapcore.WarnLevel:
		return brightYellow
	case zapcore.ErrorLevel:
		return brightRed
	default:
		return white
	}
}

// Logger wraps *zap.Logger with component-tagged and security-event helpers.
type Logger struct {
	*zap.Logger
	enableColors bool
}

func consoleEncoder(enableColors bool) zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		s := t.Format("2006-01-02T15:04:05.000Z0700")
		if enableColors {
			enc.AppendString(fmt.Sprintf("%s%s%s", dim, s, reset))
		} else {
			enc.AppendString(s)
		}
	}
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		s := strings.ToUpper(l.String())
		if enableColors {
			enc.AppendString(fmt.Sprintf("%s%s%-5s%s", levelColor(l), bold, s, reset))
		} else {
			enc.AppendString(fmt.Sprintf("%-5s", s))
		}
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// New builds a Logger for the given output format ("json" selects structured
// JSON; any other value selects the ANSI-colored console encoder).
func New(format string) (*Logger, error) {
	var core zapcore.Core
	switch format {
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		core = zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(os.Stdout), zapcore.InfoLevel)
	default:
		core = zapcore.NewCore(consoleEncoder(true), zapcore.AddSync(os.Stdout), zapcore.DebugLevel)
	}
	return &Logger{Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), enableColors: format != "json"}, nil
}

// Nop returns a Logger that discards all output, for tests.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) tag(component Component, msg string) string {
	if l.enableColors {
		return fmt.Sprintf("%s[%s]%s %s", componentColor(component), component, reset, msg)
	}
	return fmt.Sprintf("[%s] %s", component, msg)
}

func (l *Logger) ComponentInfo(c Component, msg string, fields ...zap.Field)  { l.Info(l.tag(c, msg), fields...) }
func (l *Logger) ComponentWarn(c Component, msg string, fields ...zap.Field)  { l.Warn(l.tag(c, msg), fields...) }
func (l *Logger) ComponentError(c Component, msg string, fields ...zap.Field) { l.Error(l.tag(c, msg), fields...) }
func (l *Logger) ComponentDebug(c Component, msg string, fields ...zap.Field) { l.Debug(l.tag(c, msg), fields...) }

// SecurityEvent logs a warn-level record for the two security-relevant
// failures the spec calls out explicitly: hash-verification failure and
// permission denial (§4.1, §4.2, §7).
func (l *Logger) SecurityEvent(c Component, msg string, fields ...zap.Field) {
	fields = append(fields, zap.Bool("security_alert", true))
	l.ComponentWarn(c, msg, fields...)
}
