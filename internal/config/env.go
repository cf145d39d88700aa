package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Options holds the agent's resolved runtime configuration: where to
// listen, and where its config and package directories live.
type Options struct {
	ListenAddress string
	ListenPort    int
	ConfigDir     string
	PackagesDir   string
}

// DefaultOptions resolves the agent's configuration the way the original
// source does: NEXUSAGENT_* environment variables override built-in
// defaults, and the config/package directories default to a platform
// conventional data directory when unset.
func DefaultOptions() Options {
	root := defaultRootDir()

	opts := Options{
		ListenAddress: DefaultListenAddress,
		ListenPort:    DefaultListenPort,
		ConfigDir:     filepath.Join(root, "config"),
		PackagesDir:   filepath.Join(root, "packages"),
	}

	if v := os.Getenv("NEXUSAGENT_SYSTEM__JSONRPCLISTENADDRESS"); v != "" {
		opts.ListenAddress = v
	}
	if v := os.Getenv("NEXUSAGENT_SYSTEM__JSONRPCLISTENPORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			opts.ListenPort = port
		}
	}
	if v := os.Getenv("NEXUSAGENT_PATHS__CONFIG"); v != "" {
		opts.ConfigDir = v
	}
	if v := os.Getenv("NEXUSAGENT_PATHS__PACKAGES"); v != "" {
		opts.PackagesDir = v
	}

	return opts
}

// defaultRootDir returns the platform-conventional per-user data directory
// for the agent: %LOCALAPPDATA%\nexus-agent on Windows,
// $HOME/.local/share/nexus-agent elsewhere.
func defaultRootDir() string {
	if runtime.GOOS == "windows" {
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "nexus-agent")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "nexus-agent")
}
