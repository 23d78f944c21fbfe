package models

import (
	"strings"
	"time"
)

// Item is a document of the items collection. ID is assigned by the store
// and never changes afterwards.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    string     `json:"category"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ItemInput is the request body of create and update. Updates always carry
// every field; there is no partial update.
type ItemInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
}

// Missing returns the names of required fields that are empty.
func (in ItemInput) Missing() []string {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Category) == "" {
		missing = append(missing, "category")
	}
	return missing
}
