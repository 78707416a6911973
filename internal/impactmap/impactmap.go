package impactmap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// ParseKey parses an impact map key in the format "(PLANET1,PLANET2)|aspect"
// and returns the pair in canonical order.
func ParseKey(key string) (models.Planet, models.Planet, models.Aspect, error) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("bad key %q: expected '(P1,P2)|aspect'", key)
	}

	pair, aspect := parts[0], models.Aspect(parts[1])
	if !strings.HasPrefix(pair, "(") || !strings.HasSuffix(pair, ")") {
		return "", "", "", fmt.Errorf("bad key %q: pair must be parenthesized", key)
	}

	planets := strings.SplitN(pair[1:len(pair)-1], ",", 2)
	if len(planets) != 2 {
		return "", "", "", fmt.Errorf("bad key %q: expected two planets", key)
	}

	p1 := models.Planet(strings.TrimSpace(planets[0]))
	p2 := models.Planet(strings.TrimSpace(planets[1]))
	if !p1.Valid() || !p2.Valid() {
		return "", "", "", fmt.Errorf("bad key %q: unknown planet", key)
	}
	if p1 == p2 {
		return "", "", "", fmt.Errorf("bad key %q: planets must differ", key)
	}
	if !aspect.Valid() {
		return "", "", "", fmt.Errorf("bad key %q: unknown aspect %q", key, aspect)
	}

	a, b := models.CanonicalPair(p1, p2)
	return a, b, aspect, nil
}

// FormatKey renders the canonical key for a rule
func FormatKey(p1, p2 models.Planet, aspect models.Aspect) string {
	a, b := models.CanonicalPair(p1, p2)
	return fmt.Sprintf("(%s,%s)|%s", a, b, aspect)
}

// BuildVersion validates a keyed weight map and assembles an immutable
// impact map version. Zero weights are dropped to keep the rule set
// sparse; invalid planets, aspects, categories or out-of-range weights
// are rejected.
func BuildVersion(byKey map[string]map[models.Category]int, notes string) (*models.ImpactMapVersion, error) {
	version := &models.ImpactMapVersion{
		ID:        uuid.NewString(),
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	for _, key := range keys {
		p1, p2, aspect, err := ParseKey(key)
		if err != nil {
			return nil, err
		}

		canonical := FormatKey(p1, p2, aspect)
		if seen[canonical] {
			return nil, fmt.Errorf("duplicate key %q after canonicalization", canonical)
		}
		seen[canonical] = true

		for category, weight := range byKey[key] {
			if weight == 0 {
				continue
			}
			rule := models.ImpactRule{
				Planet1:  p1,
				Planet2:  p2,
				Aspect:   aspect,
				Category: category,
				Weight:   weight,
			}
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			version.Rules = append(version.Rules, rule)
		}
	}

	sort.Slice(version.Rules, func(i, j int) bool {
		a, b := version.Rules[i], version.Rules[j]
		if a.Planet1 != b.Planet1 {
			return a.Planet1 < b.Planet1
		}
		if a.Planet2 != b.Planet2 {
			return a.Planet2 < b.Planet2
		}
		if a.Aspect != b.Aspect {
			return a.Aspect < b.Aspect
		}
		return a.Category < b.Category
	})

	version.BuildIndex()
	return version, nil
}
