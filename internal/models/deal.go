package models

import "time"

// Deal sources
const (
	DealSourceFlyer   = "flyer"
	DealSourceWebsite = "website"
	DealSourceAPI     = "api"
)

// RawDeal is a time-bounded offer as read from a flyer page
type RawDeal struct {
	ProductName     string
	Brand           *string
	Description     *string
	DealPrice       int64 // cents
	OriginalPrice   *int64
	DiscountPercent *int
	UnitPrice       *int64
	UnitType        *UnitType
	ImageURL        *string
	CategorySlug    *string
	StartDate       time.Time
	EndDate         time.Time
	Conditions      *string
	LocationSlug    *string
	Source          string
	SourceRef       *string
	SourceURL       *string
}

// Deal is the persisted offer, unique by (TargetID, ProductName, StartDate, EndDate)
type Deal struct {
	ID              string    `json:"id"`
	TargetID        string    `json:"target_id" badgerhold:"index"`
	CategoryID      *string   `json:"category_id,omitempty"`
	ProductName     string    `json:"product_name"`
	Brand           *string   `json:"brand,omitempty"`
	Description     *string   `json:"description,omitempty"`
	DealPrice       int64     `json:"deal_price"`
	OriginalPrice   *int64    `json:"original_price,omitempty"`
	DiscountPercent *int      `json:"discount_percent,omitempty"`
	UnitPrice       *int64    `json:"unit_price,omitempty"`
	UnitType        *UnitType `json:"unit_type,omitempty"`
	ImageURL        *string   `json:"image_url,omitempty"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	IsActive        bool      `json:"is_active"`
	Conditions      *string   `json:"conditions,omitempty"`
	LocationSlug    *string   `json:"location_slug,omitempty"`
	Source          string    `json:"source"`
	SourceRef       *string   `json:"source_ref,omitempty"`
	SourceURL       *string   `json:"source_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
