package common

import (
	"github.com/google/uuid"
)

// NewTargetID generates a target ID. Format: tgt_<uuid>
func NewTargetID() string {
	return "tgt_" + uuid.New().String()
}

// NewCategoryID generates a category ID. Format: cat_<uuid>
func NewCategoryID() string {
	return "cat_" + uuid.New().String()
}

// NewProductID generates a catalog product ID. Format: prd_<uuid>
func NewProductID() string {
	return "prd_" + uuid.New().String()
}

// NewDealID generates a deal ID. Format: deal_<uuid>
func NewDealID() string {
	return "deal_" + uuid.New().String()
}

// NewRunID generates a crawl run ID. Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
