package anthropic

import (
	_ "embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed costs.yaml
var embeddedCosts []byte

// ModelCost holds per-million-token prices in USD.
type ModelCost struct {
	Input      float64 `yaml:"input"`
	CacheWrite float64 `yaml:"cache_write"`
	CacheRead  float64 `yaml:"cache_read"`
	Output     float64 `yaml:"output"`
}

type CostTable struct {
	Models map[string]ModelCost `yaml:"models"`
}

// LoadCostTable reads the cost table from path, falling back to the embedded
// default when path is empty.
func LoadCostTable(path string) (*CostTable, error) {
	raw := embeddedCosts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var t CostTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	if t.Models == nil {
		t.Models = map[string]ModelCost{}
	}
	return &t, nil
}

// Cost computes the USD cost of one call. Unknown models cost zero; the usage
// row still records token counts so the gap is visible.
func (t *CostTable) Cost(model string, u Usage) float64 {
	if t == nil {
		return 0
	}
	mc, ok := t.lookup(model)
	if !ok {
		return 0
	}
	const million = 1_000_000
	return float64(u.InputTokens)*mc.Input/million +
		float64(u.CacheCreationTokens)*mc.CacheWrite/million +
		float64(u.CacheReadTokens)*mc.CacheRead/million +
		float64(u.OutputTokens)*mc.Output/million
}

func (t *CostTable) lookup(model string) (ModelCost, bool) {
	key := strings.ToLower(strings.TrimSpace(model))
	if mc, ok := t.Models[key]; ok {
		return mc, true
	}
	// Dated snapshots share the base model's pricing.
	for k, mc := range t.Models {
		if strings.HasPrefix(key, k) {
			return mc, true
		}
	}
	return ModelCost{}, false
}
