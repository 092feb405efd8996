// Package device reports the user agent and screen resolution stamped on every telemetry event.
package device

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

// UnknownResolution is reported when no override is set and stdout is not a terminal.
const UnknownResolution = "0x0"

// Version is reported in the default user agent.
var Version = "dev"

// SizeFunc returns the width and height of the terminal on fd.
type SizeFunc func(fd int) (width, height int, err error)

// Info is the device description for a process.
type Info struct {
	UserAgent        string
	ScreenResolution string
}

// Detect builds Info from the overrides, falling back to a runtime-derived user agent and
// the size of the terminal attached to stdout.
func Detect(userAgent, resolution string) Info {
	return detect(userAgent, resolution, int(os.Stdout.Fd()), term.IsTerminal, term.GetSize)
}

func detect(userAgent, resolution string, fd int, isTerminal func(int) bool, size SizeFunc) Info {
	info := Info{
		UserAgent:        strings.TrimSpace(userAgent),
		ScreenResolution: strings.TrimSpace(resolution),
	}
	if info.UserAgent == "" {
		info.UserAgent = DefaultUserAgent()
	}
	if info.ScreenResolution == "" {
		info.ScreenResolution = UnknownResolution
		if isTerminal(fd) {
			if w, h, err := size(fd); err == nil && w > 0 && h > 0 {
				info.ScreenResolution = FormatResolution(w, h)
			}
		}
	}
	return info
}

// DefaultUserAgent returns "analytics-client/<version> (<os>; <arch>) <go version>".
func DefaultUserAgent() string {
	return fmt.Sprintf("analytics-client/%s (%s; %s) %s", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// FormatResolution renders a size as "WxH".
func FormatResolution(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
