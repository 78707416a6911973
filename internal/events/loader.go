package events

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// fileFormat is the YAML document shape accepted by LoadFile, one
// ephemeris quarter per file:
//
//	quarter: "2026-Q3"
//	source: "ephemeris-v2"
//	events:
//	  - planet1: MARS
//	    planet2: SATURN
//	    aspect: square
//	    start: 2026-07-01T00:00:00Z
//	    peak: 2026-07-10T03:00:00Z
//	    end: 2026-07-19T00:00:00Z
//	    orb_deg: 1.2
//	    severity: major
//	    is_eclipse: false
//	    confidence: 0.95
type fileFormat struct {
	Quarter string      `yaml:"quarter"`
	Source  string      `yaml:"source"`
	Events  []fileEvent `yaml:"events"`
}

type fileEvent struct {
	Planet1    string    `yaml:"planet1"`
	Planet2    string    `yaml:"planet2"`
	Aspect     string    `yaml:"aspect"`
	Start      time.Time `yaml:"start"`
	Peak       time.Time `yaml:"peak"`
	End        time.Time `yaml:"end"`
	OrbDeg     float64   `yaml:"orb_deg"`
	Severity   string    `yaml:"severity"`
	IsEclipse  bool      `yaml:"is_eclipse"`
	Confidence float64   `yaml:"confidence"`
}

// LoadFile reads one quarter of aspect events from a YAML ephemeris
// export. Planet pairs are canonicalized and every event validated;
// one bad event fails the whole file so a partial quarter is never
// imported.
func LoadFile(path string) ([]models.AspectEvent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse events yaml: %w", err)
	}
	if doc.Quarter == "" {
		return nil, fmt.Errorf("events file %s is missing a quarter", path)
	}
	if len(doc.Events) == 0 {
		return nil, fmt.Errorf("events file %s contains no events", path)
	}

	out := make([]models.AspectEvent, 0, len(doc.Events))
	for i, fe := range doc.Events {
		p1, p2 := models.CanonicalPair(models.Planet(fe.Planet1), models.Planet(fe.Planet2))

		e := models.AspectEvent{
			Quarter:    doc.Quarter,
			StartUTC:   fe.Start.UTC(),
			PeakUTC:    fe.Peak.UTC(),
			EndUTC:     fe.End.UTC(),
			Planet1:    p1,
			Planet2:    p2,
			Aspect:     models.Aspect(fe.Aspect),
			OrbDeg:     fe.OrbDeg,
			Severity:   models.Severity(fe.Severity),
			IsEclipse:  fe.IsEclipse,
			Source:     doc.Source,
			Confidence: fe.Confidence,
		}

		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("event %d in %s: %w", i, path, err)
		}

		out = append(out, e)
	}

	return out, nil
}
