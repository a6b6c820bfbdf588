package dice

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// WagerType is a betting method within a family with its default payout
// multiplier.
type WagerType struct {
	Family Family
	Tier   string
	Code   Code
	Name   string
	Odds   decimal.Decimal
}

type catalogFile struct {
	Families []struct {
		Code  string `yaml:"code"`
		Name  string `yaml:"name"`
		Dice  int    `yaml:"dice"`
		Tiers []struct {
			Code   string `yaml:"code"`
			Name   string `yaml:"name"`
			Wagers []struct {
				Code string `yaml:"code"`
				Name string `yaml:"name"`
				Odds string `yaml:"odds"`
			} `yaml:"wagers"`
		} `yaml:"tiers"`
	} `yaml:"families"`
}

// DefaultCatalog returns the wager types shipped with the engine.
func DefaultCatalog() ([]WagerType, error) {
	return LoadCatalog(defaultCatalog)
}

// LoadCatalog parses a YAML catalog. Every family must be known and declare
// its real dice count, every code must be evaluable for that many dice, and
// every odds value must be positive.
func LoadCatalog(data []byte) ([]WagerType, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	var types []WagerType
	seen := make(map[string]bool)
	for _, fam := range f.Families {
		family, err := ParseFamily(fam.Code)
		if err != nil {
			return nil, err
		}
		if fam.Dice != family.DiceCount() {
			return nil, fmt.Errorf("catalog family %s declares %d dice, want %d", family, fam.Dice, family.DiceCount())
		}
		known := make(map[Code]bool)
		for _, c := range Codes(family.DiceCount()) {
			known[c] = true
		}
		for _, tier := range fam.Tiers {
			for _, w := range tier.Wagers {
				code := Code(w.Code)
				if !known[code] {
					return nil, fmt.Errorf("catalog family %s: wager code %q has no rule", family, w.Code)
				}
				key := string(family) + "/" + w.Code
				if seen[key] {
					return nil, fmt.Errorf("catalog family %s: duplicate wager code %q", family, w.Code)
				}
				seen[key] = true
				odds, err := decimal.NewFromString(w.Odds)
				if err != nil {
					return nil, fmt.Errorf("catalog %s: odds %q: %w", key, w.Odds, err)
				}
				if !odds.IsPositive() {
					return nil, fmt.Errorf("catalog %s: odds must be positive", key)
				}
				types = append(types, WagerType{
					Family: family,
					Tier:   tier.Code,
					Code:   code,
					Name:   w.Name,
					Odds:   odds,
				})
			}
		}
	}
	return types, nil
}
