package models

import "time"

// RawProduct is a catalog item as read from a page, before reconciliation
type RawProduct struct {
	ExternalID      string
	Name            string
	Brand           *string
	Description     *string
	Price           int64 // cents
	OriginalPrice   *int64
	UnitPrice       *int64
	UnitType        *UnitType
	UnitPriceText   *string // Unit price as printed, e.g. "1 kg = 2,99 €"
	UnitQuantity    *float64
	ImageURL        *string
	ProductURL      *string
	CategorySlug    *string
	SubCategorySlug *string // Second path segment below the location, e.g. "frisches-gemuese"
	InStock         bool
}

// Product is the persisted catalog item, unique by (TargetID, ExternalID)
type Product struct {
	ID            string    `json:"id"`
	TargetID      string    `json:"target_id" badgerhold:"index"`
	ExternalID    string    `json:"external_id"`
	CategoryID    *string   `json:"category_id,omitempty"`
	SubCategoryID *string   `json:"sub_category_id,omitempty"`
	Name          string    `json:"name"`
	Brand         *string   `json:"brand,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Price         int64     `json:"price"`
	OriginalPrice *int64    `json:"original_price,omitempty"`
	UnitPrice     *int64    `json:"unit_price,omitempty"`
	UnitType      *UnitType `json:"unit_type,omitempty"`
	UnitPriceText *string   `json:"unit_price_text,omitempty"`
	UnitQuantity  *float64  `json:"unit_quantity,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	ProductURL    *string   `json:"product_url,omitempty"`
	InStock       bool      `json:"in_stock"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
