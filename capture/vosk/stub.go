//go:build !vosk

// Package vosk runs continuous offline recognition with a Vosk model. This
// build was compiled without the vosk tag and reports recognition as
// unsupported.
package vosk

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/capture/device"
)

// Available reports whether this build includes Vosk.
const Available = false

// Factory returns a factory that always fails with capture.ErrUnsupported.
func Factory(modelPath string, mic *device.Microphone, logger *log.Logger) capture.RecognizerFactory {
	return func() (capture.Recognizer, error) {
		return nil, fmt.Errorf("%w: built without vosk (rebuild with -tags vosk)", capture.ErrUnsupported)
	}
}
