package bootstrap

import (
	"os"
	"path/filepath"
)

// Dirs locates the writable application-data directory for the current
// platform. Bootstrap stays platform-agnostic above this boundary.
type Dirs interface {
	DataDir() (string, error)
}

// DesktopDirs resolves through the operating system's per-user configuration
// location.
type DesktopDirs struct {
	// AppName is the directory created under the user configuration root.
	AppName string
}

// DataDir implements Dirs.
func (d DesktopDirs) DataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, d.AppName), nil
}

// SandboxQuerier is the bridge to a mobile host application's sandbox, where
// the data directory comes from the application runtime rather than a
// filesystem convention. The embedding layer supplies the implementation.
type SandboxQuerier interface {
	ExternalFilesDir() (string, error)
}

// SandboxDirs derives the data directory from the hosting application's
// sandbox.
type SandboxDirs struct {
	Query SandboxQuerier
}

// DataDir implements Dirs.
func (d SandboxDirs) DataDir() (string, error) {
	return d.Query.ExternalFilesDir()
}
