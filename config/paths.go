package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultRootDir returns the client root: $MCPCHAT_ROOT when set, else the
// working directory. mcp.json, config.toml and .env are looked up there and
// relative server arguments are resolved against it.
func DefaultRootDir() string {
	if root := os.Getenv("MCPCHAT_ROOT"); root != "" {
		return ExpandPath(root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// GetHomeDir returns the user's home directory across platforms
// Windows: %USERPROFILE% (C:\Users\username)
// Linux/Mac: $HOME (/home/username)
func GetHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("USERPROFILE")
		if home == "" {
			// Fallback: HOMEDRIVE + HOMEPATH
			home = os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		}
		if home == "" {
			home = "C:\\"
		}
		return home
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = "/"
	}
	return home
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(GetHomeDir(), path[2:])
	}

	path = os.ExpandEnv(path)

	return filepath.Clean(path)
}

// ResolveArg resolves a server argument that starts with ./ or ../ against root.
// Anything else is returned unchanged.
func ResolveArg(root, arg string) string {
	if strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return filepath.Clean(filepath.Join(root, arg))
	}
	return arg
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions ensures data directory has 0700 permissions
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dataDir, 0700)
		}
		return err
	}

	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
