package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// browserCommand returns the launcher invocation for target on the current platform.
func browserCommand(target string) ([]string, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: not an http(s) URL: %q", ErrInvalidInput, target)
	}

	launcher, ok := browserCommands[getRuntime()]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", getRuntime())
	}
	return append(append([]string{}, launcher...), u.String()), nil
}

// OpenBrowser opens target, an http or https URL, in the default browser.
func OpenBrowser(target string) error {
	args, err := browserCommand(target)
	if err != nil {
		return err
	}

	if err := exec.Command(args[0], args[1:]...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
