// Package models defines the domain types for Muninn.
package models

import "time"

// Note is the per-scan snapshot of a Markdown file in the vault. The
// reminder engine only reads it; notes are owned by the user's editor.
type Note struct {
	Path        string                 `json:"path"`
	Frontmatter map[string]interface{} `json:"frontmatter,omitempty"`
	Lines       []string               `json:"-"`
	Title       string                 `json:"title,omitempty"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
