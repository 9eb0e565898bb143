// Package models defines the domain types for Humble.
package models

import "time"

// LinkType classifies a wikilink by the extension of its target.
type LinkType int

const (
	// LinkText is a cross-document reference.
	LinkText LinkType = iota
	// LinkImage points at an image file (jpg, jpeg, png, gif).
	LinkImage
)

// String returns the lowercase name of the link type.
func (t LinkType) String() string {
	if t == LinkImage {
		return "image"
	}
	return "text"
}

// WikiLink is one [[...]] occurrence found in a page.
type WikiLink struct {
	Name   string   `json:"name"`             // alias if given, otherwise the link
	Link   string   `json:"link"`             // empty for a pure in-page anchor
	Anchor string   `json:"anchor,omitempty"` // fragment after '#'
	Type   LinkType `json:"type"`
}

// Page is one parsed source document.
//
// Wikilinks are extracted once when the page is loaded and never change.
// Contents is replaced by the annotation stage.
type Page struct {
	Title     string     `json:"title"`
	Path      string     `json:"path"`
	Contents  string     `json:"-"`
	Wikilinks []WikiLink `json:"wikilinks,omitempty"`
}

// Backlink records how many times Source links to some target page.
type Backlink struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// FileMeta describes a file found while walking a storage root.
type FileMeta struct {
	Path      string    `json:"path"` // relative to the storage root, slash separated
	AbsPath   string    `json:"-"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
