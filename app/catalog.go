package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tubegate/tubegate/domain/video"
)

// CatalogDefaults are applied to every video that does not override
// the field itself.
type CatalogDefaults struct {
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	CategoryID  string   `yaml:"category_id"`
	Privacy     string   `yaml:"privacy"`
	Language    string   `yaml:"language"`
	Collection  string   `yaml:"collection"`
}

// CatalogEntry is the per-file metadata document.
type CatalogEntry struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	CategoryID  string   `yaml:"category_id"`
	Privacy     string   `yaml:"privacy"`
	Language    string   `yaml:"language"`
	Collection  string   `yaml:"collection"`
}

// Catalog maps filenames to upload metadata, loaded from a YAML
// document with a defaults section and per-file overrides.
type Catalog struct {
	Defaults CatalogDefaults         `yaml:"defaults"`
	Videos   map[string]CatalogEntry `yaml:"videos"`
}

// LoadCatalog parses the metadata catalog at path. A missing file
// yields an empty catalog: every video then gets defaults only, with
// its filename as the title.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("read metadata catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse metadata catalog: %w", err)
	}
	return &cat, nil
}

// For resolves the metadata for filename: the per-file entry layered
// over the defaults. The title falls back to the filename without its
// extension, and privacy falls back to private.
func (c *Catalog) For(filename string) video.Metadata {
	entry := c.Videos[filename]

	meta := video.Metadata{
		Title:       entry.Title,
		Description: firstNonEmpty(entry.Description, c.Defaults.Description),
		Tags:        entry.Tags,
		CategoryID:  firstNonEmpty(entry.CategoryID, c.Defaults.CategoryID),
		Privacy:     video.Privacy(firstNonEmpty(entry.Privacy, c.Defaults.Privacy, string(video.PrivacyPrivate))),
		Language:    firstNonEmpty(entry.Language, c.Defaults.Language),
		Collection:  firstNonEmpty(entry.Collection, c.Defaults.Collection),
	}
	if len(meta.Tags) == 0 {
		meta.Tags = c.Defaults.Tags
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
