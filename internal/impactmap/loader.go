package impactmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// fileFormat is the YAML document shape accepted by LoadFile:
//
//	notes: "baseline map"
//	map:
//	  "(MARS,SATURN)|square":
//	    geopolitics: 2
//	    conflict: 3
type fileFormat struct {
	Notes string                             `yaml:"notes"`
	Map   map[string]map[models.Category]int `yaml:"map"`
}

// LoadFile reads an impact map definition from a YAML file and builds a
// validated version from it.
func LoadFile(path string) (*models.ImpactMapVersion, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read impact map file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse impact map yaml: %w", err)
	}
	if len(doc.Map) == 0 {
		return nil, fmt.Errorf("impact map file %s contains no rules", path)
	}

	return BuildVersion(doc.Map, doc.Notes)
}
