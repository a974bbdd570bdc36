package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/pricewatch/internal/models"
)

// ErrInvalidPrice is returned when a price string carries no usable number
var ErrInvalidPrice = errors.New("invalid price")

var (
	priceCleaner  = strings.NewReplacer("€", "", " ", "", "\u00a0", "", "\t", "", "\n", "", "\r", "")
	decimalPrefix = regexp.MustCompile(`^(\d+)(?:\.(\d*))?`)
	unitPricePat  = regexp.MustCompile(`([0-9.,]+)\s*€?\s*/\s*(.+)`)
	discountPat   = regexp.MustCompile(`(\d+)\s*%`)
	litreTokenPat = regexp.MustCompile(`(^|[^a-z])(l|liter|litre|ltr)([^a-z]|$)`)
)

// ParsePrice converts a German formatted price ("1.299,99 €", "1,99", "2.49")
// to integer cents. Dots preceding a comma are thousands separators; the
// comma is the decimal separator. Without a comma the text is a plain decimal.
// Only the leading numeric part is read; rounding is to the nearest cent.
func ParsePrice(text string) (int64, error) {
	cleaned := priceCleaner.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, ErrInvalidPrice
	}

	if idx := strings.LastIndex(cleaned, ","); idx >= 0 {
		cleaned = strings.ReplaceAll(cleaned[:idx], ".", "") + cleaned[idx:]
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	match := decimalPrefix.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}

	var units int64
	if intPart := strings.TrimLeft(match[1], "0"); intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil || v > math.MaxInt64/100 {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalidPrice, text)
		}
		units = v
	}

	frac := match[2] + "000"
	cents := int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}

	if units*100 > math.MaxInt64-cents {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidPrice, text)
	}
	return units*100 + cents, nil
}

// FormatPrice renders cents as a German price string, e.g. "1.299,99 €"
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	euros := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range euros {
		if i > 0 && (len(euros)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	return fmt.Sprintf("%s%s,%02d €", sign, grouped.String(), cents%100)
}

// UnitPrice is a parsed reference price such as "2,99 € / 1 kg"
type UnitPrice struct {
	Cents    int64
	UnitType models.UnitType
}

// ParseUnitPrice reads "<number> [€] / <unit label>" and classifies the unit.
// It returns false when the text does not match or the number is unparseable.
func ParseUnitPrice(text string) (UnitPrice, bool) {
	match := unitPricePat.FindStringSubmatch(text)
	if match == nil {
		return UnitPrice{}, false
	}

	cents, err := ParsePrice(match[1])
	if err != nil {
		return UnitPrice{}, false
	}

	return UnitPrice{Cents: cents, UnitType: ClassifyUnit(match[2])}, true
}

// ClassifyUnit maps a unit label to a UnitType, defaulting to piece
func ClassifyUnit(label string) models.UnitType {
	unit := strings.ToLower(strings.TrimSpace(label))

	switch {
	case strings.Contains(unit, "kg"):
		return models.UnitKg
	case strings.Contains(unit, "100 ml") || strings.Contains(unit, "100ml"):
		return models.Unit100ml
	case strings.Contains(unit, "100 g") || strings.Contains(unit, "100g"):
		return models.Unit100g
	case litreTokenPat.MatchString(unit):
		return models.UnitLiter
	}
	return models.UnitPiece
}

var unitLabels = map[models.UnitType]string{
	models.UnitPiece: "Stück",
	models.UnitKg:    "1 kg",
	models.UnitLiter: "1 l",
	models.Unit100g:  "100 g",
	models.Unit100ml: "100 ml",
}

// FormatUnitPrice renders a unit price, e.g. "2,99 € / 1 kg"
func FormatUnitPrice(cents int64, unit models.UnitType) string {
	label, ok := unitLabels[unit]
	if !ok {
		label = string(unit)
	}
	return FormatPrice(cents) + " / " + label
}

// CalculateDiscount returns the rounded percentage saved, or nil when there
// is no original price above the current one
func CalculateDiscount(original *int64, current int64) *int {
	if original == nil || *original <= 0 || *original <= current {
		return nil
	}
	pct := int(math.Round(float64(*original-current) / float64(*original) * 100))
	return &pct
}

// ParseDiscountText reads an explicit "-25 %" style badge
func ParseDiscountText(text string) *int {
	match := discountPat.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	pct, err := strconv.Atoi(match[1])
	if err != nil || pct <= 0 {
		return nil
	}
	return &pct
}
