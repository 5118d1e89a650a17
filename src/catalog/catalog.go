package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
)

type catalogYAML struct {
	Instruments []eventmodels.Instrument `yaml:"instruments"`
}

// StaticCatalog is an in-memory instrument catalog, usually loaded from a
// YAML file. Quotes in it are a snapshot, refreshed with Update.
type StaticCatalog struct {
	mu          sync.RWMutex
	instruments map[string]eventmodels.Instrument
}

func NewStaticCatalog(instruments ...eventmodels.Instrument) (*StaticCatalog, error) {
	c := &StaticCatalog{
		instruments: make(map[string]eventmodels.Instrument, len(instruments)),
	}

	for _, inst := range instruments {
		if err := c.Update(inst); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func LoadStaticCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadStaticCatalog: failed to read %s: %w", path, err)
	}

	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("LoadStaticCatalog: failed to unmarshal %s: %w", path, err)
	}

	c, err := NewStaticCatalog(doc.Instruments...)
	if err != nil {
		return nil, fmt.Errorf("LoadStaticCatalog: %s: %w", path, err)
	}

	return c, nil
}

func (c *StaticCatalog) Update(inst eventmodels.Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.instruments[strings.ToUpper(strings.TrimSpace(inst.Symbol))] = inst
	return nil
}

func (c *StaticCatalog) LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, found := c.instruments[strings.ToUpper(strings.TrimSpace(symbol))]
	if !found {
		return eventmodels.Instrument{}, fmt.Errorf("%w: %s", eventmodels.ErrInstrumentNotFound, symbol)
	}

	return inst, nil
}

func (c *StaticCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.instruments)
}
