package models

import "time"

// DefaultCategorySlug is used when a card carries no recognisable category
const DefaultCategorySlug = "sonstiges"

// Category is a catalog section of a target, looked up by (TargetID, Slug)
type Category struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id" badgerhold:"index"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
