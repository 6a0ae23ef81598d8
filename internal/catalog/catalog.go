package catalog

import (
	"fmt"
	"strings"

	"brasa/internal/config"
)

// Standard is a protein and its default share of the per-guest weight.
type Standard struct {
	Protein      string  `json:"protein"`
	BaseFraction float64 `json:"base_fraction"`
}

// Group aggregates proteins for variance reporting.
type Group struct {
	Key        string   `json:"key"`
	Members    []string `json:"members"`
	DinnerOnly bool     `json:"dinner_only"`
}

// Catalog is the read-only protein reference data: standards, unit rules
// and groups. Name lookups are case-insensitive.
type Catalog struct {
	standards []Standard
	index     map[string]int
	baseline  float64
	rules     map[string]UnitRule
	groups    []Group
	groupOf   map[string]int
}

// Normalize folds a protein name into its lookup key.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New builds a catalog. Every protein not named by a group forms a group of
// its own.
func New(standards []Standard, baseline float64, rules map[string]UnitRule, groups []Group) (*Catalog, error) {
	c := &Catalog{
		index:    make(map[string]int, len(standards)),
		baseline: baseline,
		rules:    make(map[string]UnitRule, len(rules)),
		groupOf:  make(map[string]int),
	}
	for _, s := range standards {
		key := Normalize(s.Protein)
		if key == "" {
			return nil, fmt.Errorf("catalog: empty protein name")
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate protein %q", s.Protein)
		}
		c.index[key] = len(c.standards)
		c.standards = append(c.standards, s)
	}
	for name, rule := range rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("catalog: unit rule %q: %w", name, err)
		}
		c.rules[Normalize(name)] = rule
	}

	for _, g := range groups {
		idx := len(c.groups)
		for _, m := range g.Members {
			key := Normalize(m)
			if _, ok := c.index[key]; !ok {
				return nil, fmt.Errorf("catalog: group %q references unknown protein %q", g.Key, m)
			}
			if prev, taken := c.groupOf[key]; taken {
				return nil, fmt.Errorf("catalog: protein %q is in groups %q and %q", m, c.groups[prev].Key, g.Key)
			}
			c.groupOf[key] = idx
		}
		c.groups = append(c.groups, Group{Key: g.Key, Members: append([]string(nil), g.Members...), DinnerOnly: g.DinnerOnly})
	}
	for _, s := range c.standards {
		key := Normalize(s.Protein)
		if _, ok := c.groupOf[key]; !ok {
			c.groupOf[key] = len(c.groups)
			c.groups = append(c.groups, Group{Key: s.Protein, Members: []string{s.Protein}})
		}
	}
	return c, nil
}

// FromConfig builds the catalog described by cfg.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	standards := make([]Standard, 0, len(cfg.Standards))
	for _, s := range cfg.Standards {
		standards = append(standards, Standard{Protein: s.Protein, BaseFraction: s.Fraction})
	}

	rules := make(map[string]UnitRule, len(cfg.UnitRules))
	for name, r := range cfg.UnitRules {
		rules[name] = UnitRule{
			Type:             RuleType(r.Type),
			UnitName:         r.UnitName,
			UnitWeight:       r.UnitWeight,
			PiecesPerSkewer:  r.PiecesPerSkewer,
			PieceWeight:      r.PieceWeight,
			Yield:            r.Yield,
			HighVolumeGuests: r.HighVolumeGuests,
			HighVolumePieces: r.HighVolumePieces,
		}
	}

	groups := make([]Group, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups = append(groups, Group{Key: g.Key, Members: g.Members, DinnerOnly: g.DinnerOnly})
	}

	baseline := cfg.BaselineTotal
	if baseline <= 0 {
		for _, s := range standards {
			baseline += s.BaseFraction
		}
	}
	return New(standards, baseline, rules, groups)
}

// Standards returns the catalog in its configured order.
func (c *Catalog) Standards() []Standard {
	return append([]Standard(nil), c.standards...)
}

// BaselineTotal is the per-guest weight the base fractions sum to.
func (c *Catalog) BaselineTotal() float64 {
	return c.baseline
}

// Lookup finds a standard by name.
func (c *Catalog) Lookup(protein string) (Standard, bool) {
	i, ok := c.index[Normalize(protein)]
	if !ok {
		return Standard{}, false
	}
	return c.standards[i], true
}

// Canonical returns the catalog spelling of protein.
func (c *Catalog) Canonical(protein string) (string, bool) {
	s, ok := c.Lookup(protein)
	return s.Protein, ok
}

// Groups returns every group, configured ones first.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	copy(out, c.groups)
	return out
}

// GroupOf returns the group a protein aggregates under. Proteins outside the
// catalog group under their own name.
func (c *Catalog) GroupOf(protein string) Group {
	if i, ok := c.groupOf[Normalize(protein)]; ok {
		return c.groups[i]
	}
	return Group{Key: strings.TrimSpace(protein), Members: []string{strings.TrimSpace(protein)}}
}
