// Package library holds the predefined media every session starts with and
// the subset used as the correction test battery.
package library

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

//go:embed media.yaml
var defaultMedia []byte

type mediaFile struct {
	Media []mediaEntry `yaml:"media"`
}

type mediaEntry struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description"`
	Battery     bool                 `yaml:"battery"`
	Compounds   map[string][]float64 `yaml:"compounds"`
}

type medium struct {
	id          string
	description string
	battery     bool
	bounds      types.BoundsMap
}

// Library is an immutable, validated set of predefined media in file order.
type Library struct {
	media []medium
}

// Default returns the library embedded in the binary.
func Default() (*Library, error) {
	return Parse(defaultMedia)
}

// LoadFile reads a library from a YAML file on disk.
func LoadFile(path string) (*Library, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media library: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a media library document.
func Parse(raw []byte) (*Library, error) {
	var file mediaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse media library: %w", err)
	}

	lib := &Library{media: make([]medium, 0, len(file.Media))}
	seen := make(map[string]bool, len(file.Media))
	for _, e := range file.Media {
		if e.ID == "" {
			return nil, fmt.Errorf("media library entry without id")
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate media id %q", e.ID)
		}
		seen[e.ID] = true

		bounds := make(types.BoundsMap, len(e.Compounds))
		for cpd, pair := range e.Compounds {
			if len(pair) != 2 {
				return nil, fmt.Errorf("media %s: compound %s needs [lower, upper], got %d values", e.ID, cpd, len(pair))
			}
			bounds[cpd] = types.Bounds{Lower: pair[0], Upper: pair[1]}
		}
		if err := bridge.ValidateBounds(bounds); err != nil {
			return nil, fmt.Errorf("media %s: %w", e.ID, err)
		}
		lib.media = append(lib.media, medium{
			id:          e.ID,
			description: e.Description,
			battery:     e.Battery,
			bounds:      bounds,
		})
	}
	return lib, nil
}

// Records returns a fresh predefined record for every medium, stamped with now.
func (l *Library) Records(now time.Time) []*types.MediaRecord {
	out := make([]*types.MediaRecord, 0, len(l.media))
	for _, m := range l.media {
		out = append(out, m.record(now))
	}
	return out
}

// BatteryIDs returns the ids of media flagged as correction battery.
func (l *Library) BatteryIDs() []string {
	var out []string
	for _, m := range l.media {
		if m.battery {
			out = append(out, m.id)
		}
	}
	return out
}

// Len returns the number of media in the library.
func (l *Library) Len() int {
	return len(l.media)
}

func (m medium) record(now time.Time) *types.MediaRecord {
	bounds := make(types.BoundsMap, len(m.bounds))
	for k, v := range m.bounds {
		bounds[k] = v
	}
	return &types.MediaRecord{
		ID:           m.id,
		Description:  m.description,
		Bounds:       bounds,
		IsPredefined: true,
		CreatedAt:    now,
	}
}
