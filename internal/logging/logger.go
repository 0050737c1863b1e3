// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupParams configure Setup.
type SetupParams struct {
	// FileName enables a rotating log file. Empty means no file.
	FileName string
	Level    string
	JSON     bool
	// Console receives logs when no file is configured. Interactive views
	// pass io.Discard so log lines never reach the terminal.
	Console io.Writer
}

// Setup applies params to the standard logrus logger and returns a closer
// for the log file, if any.
func Setup(params SetupParams) io.Closer {
	if params.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	logrus.SetLevel(GetLevel(params.Level))

	if params.FileName == "" {
		out := params.Console
		if out == nil {
			out = os.Stderr
		}
		logrus.SetOutput(out)
		return io.NopCloser(nil)
	}

	if !strings.HasSuffix(params.FileName, ".log") {
		params.FileName += ".log"
	}
	file := &lumberjack.Logger{
		Filename:   params.FileName,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}
	logrus.SetOutput(file)
	return file
}

// GetLevel maps a config level name onto logrus. Unknown names fall back to
// info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
