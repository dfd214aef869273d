package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is a log severity level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Info, fmt.Errorf("unknown log level %q", s)
	}
}

func (lvl Level) logrus() logrus.Level {
	switch lvl {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Format is a log output format.
type Format string

const (
	Logfmt Format = "logfmt"
	JSON   Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logfmt":
		return Logfmt, nil
	case "json":
		return JSON, nil
	default:
		return Logfmt, fmt.Errorf("unknown log format %q", s)
	}
}

// fieldMap keeps the short key names used across our log output.
var fieldMap = logrus.FieldMap{
	logrus.FieldKeyTime:  "ts",
	logrus.FieldKeyLevel: "level",
	logrus.FieldKeyMsg:   "msg",
}

// Logger is a structured logger taking alternating key/value pairs.
// It satisfies flowlog.Sink.
//
// All methods are safe for concurrent use.
type Logger struct {
	l *logrus.Logger
}

func New(out io.Writer, level Level, format Format) *Logger {
	if out == nil {
		out = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level.logrus())

	switch format {
	case JSON:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		})
	}

	return &Logger{l: l}
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(Debug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(Info, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(Warn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.log(Error, msg, kv...) }

func (l *Logger) log(lvl Level, msg string, kv ...any) {
	l.l.WithFields(fields(kv...)).Log(lvl.logrus(), msg)
}

// fields converts kv pairs into logrus fields. Non-string keys and a
// trailing key without a value are dropped.
func fields(kv ...any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[k] = kv[i+1]
	}
	return f
}
