package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// LoadSelectors returns the built-in page hooks with any hooks set in the
// YAML file at path laid over them. An empty path returns the defaults.
func LoadSelectors(path string) (surface.Selectors, error) {
	sel := surface.DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return surface.Selectors{}, fmt.Errorf("selectors config: %w", err)
	}
	// Decoding into the defaults keeps every hook the file leaves out.
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return surface.Selectors{}, fmt.Errorf("selectors config: %w", err)
	}
	if err := sel.Validate(); err != nil {
		return surface.Selectors{}, fmt.Errorf("selectors config: %w", err)
	}
	return sel, nil
}
