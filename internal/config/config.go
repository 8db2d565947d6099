// Package config resolves where xblrta keeps its on-disk token cache.
package config

import (
	"os"
	"path/filepath"
)

// DefaultCacheDir returns the directory the token cache should live in,
// following the same XDG/platform convention the rest of the pack uses:
// $XDG_DATA_HOME, then %APPDATA% on Windows, then ~/.local/share.
func DefaultCacheDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "xblrta")
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "xblrta")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "xblrta")
}
