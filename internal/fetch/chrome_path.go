package fetch

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// browserInstalls lists well-known install locations per GOOS. Windows
// entries are relative to the program directories.
var browserInstalls = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	},
	"windows": {
		`Google\Chrome\Application\chrome.exe`,
		`Microsoft\Edge\Application\msedge.exe`,
	},
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	},
}

var browserBinaries = []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser", "chrome"}

// FindChrome resolves the browser used by the chrome render backend.
// A usable configured path wins; otherwise install locations, then PATH.
// "" leaves the choice to chromedp.
func FindChrome(configured string) string {
	if configured != "" {
		if isExecutable(configured) {
			return configured
		}
		log.Warn().Str("path", configured).Msg("Configured chrome_path is not executable, searching")
	}

	for _, path := range installCandidates() {
		if isExecutable(path) {
			return path
		}
	}
	for _, name := range browserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func installCandidates() []string {
	paths := browserInstalls[runtime.GOOS]
	if runtime.GOOS != "windows" {
		return paths
	}

	var out []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
		base := os.Getenv(env)
		if base == "" {
			continue
		}
		for _, rel := range paths {
			out = append(out, filepath.Join(base, rel))
		}
	}
	return out
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode()&0111 != 0
}
