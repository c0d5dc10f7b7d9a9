package utils

import (
	"fmt"

	"fieldhand/models"

	"github.com/spf13/viper"
)

// Catalog is the reference data a deployment boots with.
type Catalog struct {
	Categories []models.Category `mapstructure:"categories"`
	Providers  []models.Provider `mapstructure:"providers"`
}

// LoadCatalog reads categories and providers from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	var c Catalog
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("utils.LoadCatalog: %w", err)
	}
	for i, cat := range c.Categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("catalog category %d has no id", i)
		}
		if !cat.IsOther && cat.MinPrice > cat.MaxPrice {
			return nil, fmt.Errorf("catalog category %s: minPrice above maxPrice", cat.ID)
		}
	}
	for i, p := range c.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog provider %d has no id", i)
		}
	}
	return &c, nil
}
