package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
	maxLogAgeDays = 28
)

// Setup points the standard logger at stderr and, when logFile is set, at a
// size-rotated file as well. The returned closer releases the file.
func Setup(logFile string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	logFile = strings.TrimSpace(logFile)
	if logFile == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

// Discard silences the standard logger.
func Discard() {
	log.SetOutput(io.Discard)
}
