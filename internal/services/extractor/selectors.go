package extractor

// Selector roles. Targets override any role through CrawlConfig.Selectors.
const (
	RoleCategoryLink  = "categoryLink"
	RoleProductCard   = "productCard"
	RoleProductName   = "productName"
	RoleProductBrand  = "productBrand"
	RoleProductPrice  = "productPrice"
	RoleOriginalPrice = "originalPrice"
	RoleProductImage  = "productImage"
	RoleProductLink   = "productLink"
	RoleUnitPrice     = "unitPrice"
	RoleOutOfStock    = "outOfStock"
	RolePageCount     = "pageCount"
	RoleNextPage      = "nextPage"
	RoleProductIDAttr = "productIdAttribute" // Attribute name, not a selector

	RoleDealCard      = "dealCard"
	RoleDealName      = "dealName"
	RoleDealPrice     = "dealPrice"
	RoleDealImage     = "dealImage"
	RoleDiscount      = "discount"
	RoleValidity      = "validity"
	RoleCategory      = "category"
	RoleConditions    = "conditions"
	RoleFlyerPage     = "flyerPage"
	RoleDealUnitPrice = "dealUnitPrice"
)

var defaultProductSelectors = map[string]string{
	RoleCategoryLink:  `nav a[href], .category-nav a, [data-testid="category-link"]`,
	RoleProductCard:   `[data-testid="product-card"], .product-card, .product-tile`,
	RoleProductName:   `[data-testid="product-name"], .product-name, .product-title, h2, h3`,
	RoleProductBrand:  `[data-testid="product-brand"], .product-brand, .brand`,
	RoleProductPrice:  `[data-testid="product-price"], .product-price, .price`,
	RoleOriginalPrice: `.original-price, .was-price, .strikethrough, del`,
	RoleProductImage:  `[data-testid="product-image"] img, .product-image img, img`,
	RoleProductLink:   `a[href*="/produkt"], a[href]`,
	RoleUnitPrice:     `.unit-price, .base-price, [data-testid="unit-price"]`,
	RoleOutOfStock:    `.out-of-stock, [data-availability="out-of-stock"]`,
	RolePageCount:     `[data-testid="page-count"], .page-count, [data-total-pages]`,
	RoleNextPage:      `.pagination-next, [data-testid="next-page"], a[rel="next"]`,
	RoleProductIDAttr: "data-gtin",
}

var defaultDealSelectors = map[string]string{
	RoleDealCard:      `[data-testid="deal-card"], .deal-card, .offer-card, .flyer-item`,
	RoleDealName:      `[data-testid="deal-name"], .deal-name, .offer-title, h2, h3`,
	RoleDealPrice:     `[data-testid="deal-price"], .deal-price, .offer-price, .current-price`,
	RoleOriginalPrice: `.original-price, .was-price, .strikethrough, del`,
	RoleDealImage:     `[data-testid="deal-image"] img, .deal-image img, .offer-image img`,
	RoleDiscount:      `.discount, .savings, .discount-badge, [data-testid="discount"]`,
	RoleValidity:      `.validity, .valid-dates, .offer-period, [data-testid="validity"]`,
	RoleCategory:      `.category, .deal-category, [data-testid="category"]`,
	RoleConditions:    `.conditions, .offer-conditions, [data-testid="conditions"]`,
	RoleFlyerPage:     `.flyer-page, [data-page], .prospekt-page`,
	RoleDealUnitPrice: `.unit-price, .base-price, [data-testid="unit-price"]`,
}

// Selectors resolves selector roles for one target
type Selectors map[string]string

// mergeSelectors layers target overrides over the defaults; blank overrides are ignored
func mergeSelectors(defaults, overrides map[string]string) Selectors {
	merged := make(Selectors, len(defaults)+len(overrides))
	for role, sel := range defaults {
		merged[role] = sel
	}
	for role, sel := range overrides {
		if sel != "" {
			merged[role] = sel
		}
	}
	return merged
}

// Get returns the selector for role, or "" when none is known
func (s Selectors) Get(role string) string {
	return s[role]
}
