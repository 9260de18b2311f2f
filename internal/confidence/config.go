package confidence

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Classification thresholds. ReviewGateThreshold and ThresholdMedium are
// intentionally distinct constants: the 80 gate drives the binary
// needs-review / auto-create decision, while 70 is the medium tier of the
// four-level classification. Do not unify them.
const (
	ThresholdHigh       = 90.0
	ReviewGateThreshold = 80.0
	ThresholdMedium     = 70.0
	ThresholdLow        = 50.0
)

// DefaultWeight applies to any base field absent from the weight table.
const DefaultWeight = 0.05

// Config holds the per-field weight table used for the overall score and
// the category groupings used for breakdowns.
type Config struct {
	Weights    map[string]float64  `yaml:"weights"`
	Categories map[string][]string `yaml:"categories"`
}

// DefaultConfig returns the built-in weight table and category groups.
func DefaultConfig() *Config {
	return &Config{
		Weights: map[string]float64{
			"numer_faktury":    0.15,
			"data_wystawienia": 0.10,
			"data_sprzedazy":   0.05,
			"sprzedawca":       0.20,
			"nabywca":          0.15,
			"suma_netto":       0.15,
			"suma_brutto":      0.20,
		},
		Categories: map[string][]string{
			"document_info": {"numer_faktury", "data_wystawienia", "data_sprzedazy"},
			"parties":       {"sprzedawca", "nabywca"},
			"amounts":       {"suma_netto", "suma_brutto", "vat_amount"},
			"items":         {"pozycje"},
		},
	}
}

// LoadConfig reads a weight table override from a YAML file. Sections left
// empty in the file fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "confidence: read config %s", path)
	}

	var wrapper struct {
		Confidence Config `yaml:"confidence"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "confidence: parse config")
	}

	cfg := &wrapper.Confidence
	defaults := DefaultConfig()
	if len(cfg.Weights) == 0 {
		cfg.Weights = defaults.Weights
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaults.Categories
	}
	return cfg, nil
}

// Weight returns the weight for a base field name.
func (c *Config) Weight(base string) float64 {
	if w, ok := c.Weights[base]; ok {
		return w
	}
	return DefaultWeight
}
