// Package logger writes leveled log lines tagged with the object they concern.
package logger

import (
	"fmt"
	"io"
	"reflect"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

const objWidth = 24

var std = logrus.StandardLogger()

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		t := reflect.TypeOf(obj)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	if len(objStr) > objWidth {
		objStr = objStr[:objWidth]
	}
	return
}

// Init sets the level and the text formatter used by every log call.
func Init(lvl logrus.Level) {
	std.SetLevel(lvl)
	std.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}

// SetOutput redirects log output, mostly useful in tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Enabled reports whether messages at lvl are written.
func Enabled(lvl logrus.Level) bool {
	return std.IsLevelEnabled(lvl)
}

func write(lvl logrus.Level, object any, message string) {
	std.Logf(lvl, "|%*s| %s", objWidth, objToString(object), message)
}

func Trace(object any, message string) {
	if !Enabled(logrus.TraceLevel) {
		return
	}
	write(logrus.TraceLevel, object, message)
}

func Tracef(object any, message string, args ...any) {
	if !Enabled(logrus.TraceLevel) {
		return
	}
	write(logrus.TraceLevel, object, fmt.Sprintf(message, args...))
}

func Debug(object any, message string) {
	if !Enabled(logrus.DebugLevel) {
		return
	}
	write(logrus.DebugLevel, object, message)
}

func Debugf(object any, message string, args ...any) {
	if !Enabled(logrus.DebugLevel) {
		return
	}
	write(logrus.DebugLevel, object, fmt.Sprintf(message, args...))
}

func Info(object any, message string) {
	if !Enabled(logrus.InfoLevel) {
		return
	}
	write(logrus.InfoLevel, object, message)
}

func Infof(object any, message string, args ...any) {
	if !Enabled(logrus.InfoLevel) {
		return
	}
	write(logrus.InfoLevel, object, fmt.Sprintf(message, args...))
}

func Warning(object any, message string) {
	if !Enabled(logrus.WarnLevel) {
		return
	}
	write(logrus.WarnLevel, object, message)
}

func Warningf(object any, message string, args ...any) {
	if !Enabled(logrus.WarnLevel) {
		return
	}
	write(logrus.WarnLevel, object, fmt.Sprintf(message, args...))
}

func Error(object any, message string) {
	if !Enabled(logrus.ErrorLevel) {
		return
	}
	write(logrus.ErrorLevel, object, message)
}

func Errorf(object any, message string, args ...any) {
	if !Enabled(logrus.ErrorLevel) {
		return
	}
	write(logrus.ErrorLevel, object, fmt.Sprintf(message, args...))
}

func Fatal(object any, message string) {
	std.Fatalf("|%*s| %s", objWidth, objToString(object), message)
}

func Fatalf(object any, message string, args ...any) {
	std.Fatalf("|%*s| %s", objWidth, objToString(object), fmt.Sprintf(message, args...))
}
