// Package profile defines the facility and inventory profile a user supplies
// to the estimator, the concern dimensions they can select, and the fixed
// enumerations used for segmentation.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/mro-estimator/pkg/constants"
)

// Concern is one of the pain dimensions a user can select.
type Concern string

const (
	Inventory Concern = "inventory"
	Spend     Concern = "spend"
	Downtime  Concern = "downtime"
)

// AllConcerns lists every concern in canonical order.
var AllConcerns = []Concern{Inventory, Spend, Downtime}

// ParseConcern converts a string into a Concern.
func ParseConcern(s string) (Concern, error) {
	c := Concern(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllConcerns {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown concern %q", s)
}

// Selection is a set of concerns. The zero value is an empty selection.
type Selection map[Concern]bool

// NewSelection builds a selection from the given concerns.
func NewSelection(concerns ...Concern) Selection {
	s := make(Selection, len(concerns))
	for _, c := range concerns {
		s[c] = true
	}
	return s
}

// ParseSelection parses names such as "inventory,spend".
func ParseSelection(names []string) (Selection, error) {
	s := make(Selection, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, err := ParseConcern(name)
		if err != nil {
			return nil, err
		}
		s[c] = true
	}
	return s, nil
}

// Has reports whether c is selected.
func (s Selection) Has(c Concern) bool {
	return s[c]
}

// Empty reports whether no concern is selected.
func (s Selection) Empty() bool {
	for _, on := range s {
		if on {
			return false
		}
	}
	return true
}

// NeedsInventory reports whether inventory figures are required, which is
// the case for both the inventory and the spend concern.
func (s Selection) NeedsInventory() bool {
	return s.Has(Inventory) || s.Has(Spend)
}

// Toggle flips c in place.
func (s Selection) Toggle(c Concern) {
	if s[c] {
		delete(s, c)
		return
	}
	s[c] = true
}

// List returns the selected concerns in canonical order.
func (s Selection) List() []Concern {
	list := make([]Concern, 0, len(s))
	for _, c := range AllConcerns {
		if s[c] {
			list = append(list, c)
		}
	}
	return list
}

// Strings returns the selected concern names in canonical order.
func (s Selection) Strings() []string {
	list := s.List()
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = string(c)
	}
	return names
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	for k, v := range s {
		if v {
			c[k] = true
		}
	}
	return c
}

// Industries is the fixed enumeration offered for segmentation.
var Industries = []string{
	"Aerospace & Defense",
	"Automotive",
	"Chemicals",
	"Food & Beverage",
	"Manufacturing",
	"Mining & Metals",
	"Oil & Gas",
	"Pharmaceuticals",
	"Pulp & Paper",
	"Utilities & Power",
	"Other",
}

// ValidIndustry reports whether name is one of Industries.
func ValidIndustry(name string) bool {
	for _, industry := range Industries {
		if industry == name {
			return true
		}
	}
	return false
}

// Mix partitions inventory value into active, non-moving and special shares.
type Mix struct {
	ActivePercent   float64 `json:"activePercent" yaml:"activePercent"`
	ObsoletePercent float64 `json:"obsoletePercent" yaml:"obsoletePercent"`
	SpecialPercent  float64 `json:"specialPercent" yaml:"specialPercent"`
}

// DefaultMix is assumed whenever the user never edits the mix.
func DefaultMix() Mix {
	return Mix{
		ActivePercent:   constants.DefaultActivePercent,
		ObsoletePercent: constants.DefaultObsoletePercent,
		SpecialPercent:  constants.DefaultSpecialPercent,
	}
}

// Sum returns the total of the three shares.
func (m Mix) Sum() float64 {
	return m.ActivePercent + m.ObsoletePercent + m.SpecialPercent
}

// Profile is the user's facility, inventory, spend and downtime
// characterization.
type Profile struct {
	SiteCount           int     `json:"siteCount" yaml:"siteCount"`
	TotalInventoryValue float64 `json:"totalInventoryValue" yaml:"totalInventoryValue"`
	SKUCount            int     `json:"skuCount" yaml:"skuCount"`

	Mix       `yaml:",inline"`
	MixEdited bool `json:"mixEdited" yaml:"mixEdited"`

	AnnualSpend          float64 `json:"annualSpend" yaml:"annualSpend"`
	HoldingCostRate      float64 `json:"holdingCostRate" yaml:"holdingCostRate"`
	WACCRate             float64 `json:"waccRate" yaml:"waccRate"`
	DowntimeHoursPerSite float64 `json:"downtimeHoursPerSite" yaml:"downtimeHoursPerSite"`
	DowntimeCostPerHour  float64 `json:"downtimeCostPerHour" yaml:"downtimeCostPerHour"`
	CurrentServiceLevel  float64 `json:"currentServiceLevel" yaml:"currentServiceLevel"`
	TargetServiceLevel   float64 `json:"targetServiceLevel" yaml:"targetServiceLevel"`
	StockoutPercent      float64 `json:"stockoutPercent" yaml:"stockoutPercent"`
	Industry             string  `json:"industry" yaml:"industry"`
}

// Resolved returns p with the default mix in place of a mix the user never
// edited. Whatever shares an untouched mix carries are ignored.
func (p Profile) Resolved() Profile {
	if !p.MixEdited {
		p.Mix = DefaultMix()
	}
	return p
}

// Default returns a profile carrying every documented default and no
// user-specific figures.
func Default() Profile {
	return Profile{
		Mix:                 DefaultMix(),
		HoldingCostRate:     constants.DefaultHoldingCostRate,
		WACCRate:            constants.DefaultWACCRate,
		CurrentServiceLevel: constants.DefaultCurrentServiceLevel,
		TargetServiceLevel:  constants.DefaultTargetServiceLevel,
		StockoutPercent:     constants.DefaultStockoutPercent,
	}
}

// Field names, in the order the input form presents them. Validation errors
// are keyed by these names.
const (
	FieldSiteCount            = "siteCount"
	FieldIndustry             = "industry"
	FieldTotalInventoryValue  = "totalInventoryValue"
	FieldSKUCount             = "skuCount"
	FieldActivePercent        = "activePercent"
	FieldObsoletePercent      = "obsoletePercent"
	FieldSpecialPercent       = "specialPercent"
	FieldAnnualSpend          = "annualSpend"
	FieldHoldingCostRate      = "holdingCostRate"
	FieldWACCRate             = "waccRate"
	FieldDowntimeHoursPerSite = "downtimeHoursPerSite"
	FieldDowntimeCostPerHour  = "downtimeCostPerHour"
	FieldCurrentServiceLevel  = "currentServiceLevel"
	FieldTargetServiceLevel   = "targetServiceLevel"
	FieldStockoutPercent      = "stockoutPercent"
)

// FieldOrder is the form order used to pick the first errored field.
var FieldOrder = []string{
	FieldSiteCount,
	FieldIndustry,
	FieldTotalInventoryValue,
	FieldSKUCount,
	FieldActivePercent,
	FieldObsoletePercent,
	FieldSpecialPercent,
	FieldAnnualSpend,
	FieldHoldingCostRate,
	FieldWACCRate,
	FieldDowntimeHoursPerSite,
	FieldDowntimeCostPerHour,
	FieldCurrentServiceLevel,
	FieldTargetServiceLevel,
	FieldStockoutPercent,
}

// FirstField returns the earliest field in form order present in keys. Keys
// unknown to the form sort after known ones, alphabetically.
func FirstField[V any](keys map[string]V) string {
	for _, f := range FieldOrder {
		if _, ok := keys[f]; ok {
			return f
		}
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	if len(rest) == 0 {
		return ""
	}
	sort.Strings(rest)
	return rest[0]
}
