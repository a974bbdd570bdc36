package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{"attribute", `<div class="page-count" data-total-pages="7">Seite 1</div>`, 7},
		{"von", `<div class="page-count">Seite 1 von 2 (240 Artikel)</div>`, 2},
		{"of", `<div class="page-count">Page 3 of 12</div>`, 12},
		{"slash", `<div class="page-count">1 / 4</div>`, 4},
		{"item count only", `<div class="page-count">240 Artikel</div>`, 0},
		{"missing", `<div></div>`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, pageCount(doc.Find(".page-count").First()))
		})
	}
}

func TestSubcategoryFromPath(t *testing.T) {
	const base = "https://shop.test/halle-dieselstrasse/"

	assert.Equal(t, "frisches-gemuese",
		subcategoryFromPath(base+"obst-gemuese/frisches-gemuese/frischer-salat/2000491193005/eisberg", "halle-dieselstrasse", "obst-gemuese"))
	assert.Empty(t, subcategoryFromPath(base+"obst-gemuese/2000491193005/eisberg", "halle-dieselstrasse", "obst-gemuese"))
	assert.Empty(t, subcategoryFromPath(base+"obst-gemuese/frisches-gemuese", "halle-dieselstrasse", "obst-gemuese"))
	assert.Empty(t, subcategoryFromPath("https://shop.test/produkt/aepfel/123", "halle-dieselstrasse", "obst-gemuese"))
}
