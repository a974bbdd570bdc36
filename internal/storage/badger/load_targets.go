package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// TargetsFile is the seed file format (TOML or YAML).
// Format:
// [[targets]]
// name = "Globus"
// slug = "globus"
// product_catalog_url = "https://produkte.globus.de/halle-dieselstrasse/"
// [[targets.locations]]
// name = "Halle Dieselstraße"
// slug = "halle-dieselstrasse"
// [[targets.categories]]
// slug = "obst-gemuese"
// name = "Obst & Gemüse"
type TargetsFile struct {
	Targets []TargetSeed `toml:"targets" yaml:"targets" validate:"dive"`
}

// TargetSeed describes one target and its known categories
type TargetSeed struct {
	Name              string             `toml:"name" yaml:"name" validate:"required"`
	Slug              string             `toml:"slug" yaml:"slug" validate:"required,lowercase"`
	Website           string             `toml:"website" yaml:"website" validate:"omitempty,url"`
	ProductCatalogURL string             `toml:"product_catalog_url" yaml:"product_catalog_url" validate:"omitempty,url"`
	FlyerURL          string             `toml:"flyer_url" yaml:"flyer_url" validate:"omitempty,url"`
	Active            *bool              `toml:"active" yaml:"active"`
	Locations         []models.Location  `toml:"locations" yaml:"locations" validate:"dive"`
	CrawlConfig       models.CrawlConfig `toml:"crawl_config" yaml:"crawl_config"`
	Categories        []CategorySeed     `toml:"categories" yaml:"categories" validate:"dive"`
}

// CategorySeed is a category known ahead of crawling
type CategorySeed struct {
	Slug      string `toml:"slug" yaml:"slug" validate:"required"`
	Name      string `toml:"name" yaml:"name" validate:"required"`
	SortOrder int    `toml:"sort_order" yaml:"sort_order"`
}

// ParseTargetsFile decodes seed content; format is chosen by extension
func ParseTargetsFile(path string, content []byte) (*TargetsFile, error) {
	var file TargetsFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
		}
	case ".toml", "":
		if err := toml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported targets file extension: %s", filepath.Ext(path))
	}

	if err := validator.New().Struct(&file); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("invalid targets file %s: %s", path, verrs.Error())
		}
		return nil, fmt.Errorf("invalid targets file %s: %w", path, err)
	}

	return &file, nil
}

// LoadTargetsFromFile upserts the targets and categories of a seed file by slug.
// Existing targets keep their ID, creation time and last-crawl status.
func LoadTargetsFromFile(ctx context.Context, targets interfaces.TargetStorage, categories interfaces.CategoryStorage, path string, logger arbor.ILogger) error {
	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read targets file %s: %w", path, err)
	}

	file, err := ParseTargetsFile(path, content)
	if err != nil {
		return err
	}

	created, updated := 0, 0
	for _, seed := range file.Targets {
		target, err := targets.FindBySlug(ctx, seed.Slug)
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			target = &models.Target{Slug: seed.Slug}
			created++
		case err != nil:
			return err
		default:
			updated++
		}

		applySeed(target, seed)
		if err := targets.Save(ctx, target); err != nil {
			return err
		}

		for _, cs := range seed.Categories {
			category, err := categories.FindBySlug(ctx, target.ID, cs.Slug)
			if errors.Is(err, interfaces.ErrNotFound) {
				category = &models.Category{TargetID: target.ID, Slug: cs.Slug}
			} else if err != nil {
				return err
			}
			category.Name = cs.Name
			category.SortOrder = cs.SortOrder
			category.IsActive = true
			if err := categories.Save(ctx, category); err != nil {
				return err
			}
		}

		logger.Debug().
			Str("slug", target.Slug).
			Str("target_id", target.ID).
			Int("categories", len(seed.Categories)).
			Msg("Seeded target")
	}

	logger.Info().
		Str("file", path).
		Int("created", created).
		Int("updated", updated).
		Msg("Targets loaded from file")
	return nil
}

func applySeed(target *models.Target, seed TargetSeed) {
	target.Name = seed.Name
	target.Website = seed.Website
	target.ProductCatalogURL = seed.ProductCatalogURL
	target.FlyerURL = seed.FlyerURL
	target.Locations = seed.Locations
	target.CrawlConfig = seed.CrawlConfig
	target.IsActive = seed.Active == nil || *seed.Active
	if target.LastCrawl.Status == "" {
		target.LastCrawl.Status = models.CrawlStatusPending
	}
	target.UpdatedAt = time.Now()
}
