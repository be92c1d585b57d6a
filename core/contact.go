package core

import (
	"net/url"
	"time"
)

// Contact is the normalized record the mobile client renders.
// Every field except ID may be empty; the JSON field names are part of
// the API contract with the app.
type Contact struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Avatar  string `json:"avatar"`
	Company string `json:"company"`
	Job     string `json:"job"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// HasContent reports whether the contact carries enough data to be
// worth showing. Records with no name, email, or phone are dropped
// during normalization.
func (c Contact) HasContent() bool {
	return (c.Name != "" && c.Name != UnknownName) || c.Email != "" || c.Phone != ""
}

// UnknownName is the placeholder used when a person record has no
// display name.
const UnknownName = "Unknown Contact"

// FallbackAvatar builds a ui-avatars.com URL for contacts without a
// profile photo, so the app always has something to render.
func FallbackAvatar(name string) string {
	// QueryEscape encodes spaces as "+", matching the ui-avatars format.
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) +
		"&background=6366f1&color=fff&size=128"
}

// ContactList is the response shape for the contact endpoints.
type ContactList struct {
	Contacts    []Contact  `json:"contacts"`
	Total       int        `json:"total"`
	Cached      bool       `json:"cached"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}
