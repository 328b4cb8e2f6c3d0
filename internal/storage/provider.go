// Package storage defines the vault file-system abstraction.
//
// The reminder engine treats the vault as read-only: notes are created and
// edited by the user's editor, never by this process.
package storage

import "github.com/starford/muninn/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
