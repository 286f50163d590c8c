package session

import (
	"os"
	"path/filepath"
)

// Dir returns the per-session directory under the storage root. It holds
// the whatsmeow credential database for that session.
func Dir(root, id string) string {
	return filepath.Join(root, "sessions", id)
}

// CredentialDBPath returns the whatsmeow session.db path for a session.
func CredentialDBPath(root, id string) string {
	return filepath.Join(Dir(root, id), "session.db")
}

// DatabasePath returns the default gateway database path.
func DatabasePath(root string) string {
	return filepath.Join(root, "wagate.db")
}

// LogDir returns the log directory under the storage root.
func LogDir(root string) string {
	return filepath.Join(root, "logs")
}

// LogPath returns the daemon log file path.
func LogPath(root string) string {
	return filepath.Join(LogDir(root), "wagated.log")
}

// EnsureDir creates a session's directory with owner-only permissions.
func EnsureDir(root, id string) error {
	return os.MkdirAll(Dir(root, id), 0700)
}

// PurgeDir removes a session's directory and everything in it, including
// the credential database. Missing directories are not an error.
func PurgeDir(root, id string) error {
	return os.RemoveAll(Dir(root, id))
}
