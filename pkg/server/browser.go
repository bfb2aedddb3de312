package server

import (
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"
)

// OpenBrowser opens the URL in the default browser. Failures are logged but
// not fatal, the server keeps running either way.
func OpenBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("could not open browser")
	}
}
