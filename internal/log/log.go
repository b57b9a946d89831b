package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

type Fields = logrus.Fields

// Options controls how the process logger is built.
type Options struct {
	Verbose bool   // Debug level instead of Info
	File    string // Optional rotating log file, in addition to stderr
}

// Setup builds the process logger. Only the first call has any effect;
// helpers called before Setup get a default stderr logger.
func Setup(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
		if opts.Verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        false,
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}
		if opts.File != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(opts.Verbose)
	})

	return logger
}

// Logger returns the process logger, building a default one if needed.
func Logger() *logrus.Logger {
	return Setup(Options{})
}

func Debug(fields Fields, msg string) {
	Logger().WithFields(orEmpty(fields)).Debug(msg)
}

func Info(fields Fields, msg string) {
	Logger().WithFields(orEmpty(fields)).Info(msg)
}

func Warn(fields Fields, msg string) {
	Logger().WithFields(orEmpty(fields)).Warn(msg)
}

func Error(fields Fields, msg string) {
	Logger().WithFields(orEmpty(fields)).Error(msg)
}

func orEmpty(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	return fields
}
