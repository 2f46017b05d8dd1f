// Package storage defines the oodle-directory file abstraction.
package storage

import "time"

// FileInfo is lightweight metadata for one stored oodle file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for oodle file operations. Paths are always
// relative to the oodle directory root.
type Provider interface {
	// List returns metadata for every .oodle file under the root.
	List() ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write persists content to path atomically, replacing the whole file.
	Write(path string, content []byte) error
}
