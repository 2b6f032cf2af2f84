package whisper

import (
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mutablelogic/go-whisper/sys/whisper"
)

// #include <whisper.h>
// #cgo pkg-config: libwhisper
// #cgo linux pkg-config: libwhisper-linux
// #cgo darwin pkg-config: libwhisper-darwin
import "C"

// logLevelFromWhisper maps ggml log levels onto the belt logger; whisper.cpp
// debug output is very verbose, so it goes to Trace.
func logLevelFromWhisper(logLevel whisper.LogLevel) logger.Level {
	switch logLevel {
	case whisper.LogLevelDebug:
		return logger.LevelTrace
	case whisper.LogLevelInfo, C.GGML_LOG_LEVEL_CONT:
		return logger.LevelDebug
	case whisper.LogLevelWarn:
		return logger.LevelWarning
	case whisper.LogLevelError:
		return logger.LevelError
	case C.GGML_LOG_LEVEL_NONE:
		return logger.LevelTrace
	}
	return logger.LevelUndefined
}
