package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

const sampleEventsYAML = `
quarter: "2026-Q3"
source: "ephemeris-v2"
events:
  - planet1: SATURN
    planet2: MARS
    aspect: square
    start: 2026-07-01T00:00:00Z
    peak: 2026-07-10T03:00:00Z
    end: 2026-07-19T00:00:00Z
    orb_deg: 1.2
    severity: major
    is_eclipse: false
    confidence: 0.95
  - planet1: SUN
    planet2: MOON
    aspect: opposition
    start: 2026-08-01T00:00:00Z
    peak: 2026-08-07T12:00:00Z
    end: 2026-08-14T00:00:00Z
    orb_deg: 0.4
    severity: major
    is_eclipse: true
    confidence: 1.0
`

func writeEventsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("valid quarter", func(t *testing.T) {
		events, err := LoadFile(writeEventsFile(t, sampleEventsYAML))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("got %d events", len(events))
		}

		// Pair given in reverse order comes back canonicalized
		first := events[0]
		if first.Planet1 != models.PlanetMars || first.Planet2 != "SATURN" {
			t.Errorf("pair = %s-%s, want MARS-SATURN", first.Planet1, first.Planet2)
		}
		if first.Quarter != "2026-Q3" || first.Source != "ephemeris-v2" {
			t.Errorf("quarter/source = %s/%s", first.Quarter, first.Source)
		}
		if !events[1].IsEclipse {
			t.Error("second event should be an eclipse")
		}
	})

	t.Run("missing quarter", func(t *testing.T) {
		content := "events:\n  - planet1: MARS\n"
		if _, err := LoadFile(writeEventsFile(t, content)); err == nil {
			t.Error("expected error for missing quarter")
		}
	})

	t.Run("empty events", func(t *testing.T) {
		if _, err := LoadFile(writeEventsFile(t, `quarter: "2026-Q3"`)); err == nil {
			t.Error("expected error for empty events")
		}
	})

	t.Run("one bad event fails the file", func(t *testing.T) {
		content := sampleEventsYAML + `
  - planet1: MARS
    planet2: MARS
    aspect: square
    start: 2026-07-01T00:00:00Z
    peak: 2026-07-10T03:00:00Z
    end: 2026-07-19T00:00:00Z
    severity: major
    confidence: 0.5
`
		if _, err := LoadFile(writeEventsFile(t, content)); err == nil {
			t.Error("expected error for identical planet pair")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile("/nonexistent/events.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
