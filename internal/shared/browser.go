package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var goos = runtime.GOOS

// OpenBrowser starts the user's browser on url without waiting for it to exit.
//
// $BROWSER wins when set; it may carry arguments and a %s placeholder for the url.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(goos, os.Getenv("BROWSER"), url)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(platform, override, url string) (string, []string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		args := fields[1:]
		placed := false
		for i, a := range args {
			if strings.Contains(a, "%s") {
				args[i] = strings.ReplaceAll(a, "%s", url)
				placed = true
			}
		}
		if !placed {
			args = append(args, url)
		}
		return fields[0], args, nil
	}

	switch platform {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("%w: cannot open a browser on %s, visit the URL manually", ErrNotImplemented, platform)
	}
}
