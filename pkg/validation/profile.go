// Package validation decides whether a profile may be estimated. It reports
// blocking field errors, advisory warnings, and the soft mix-sum case that
// the caller resolves by confirming a fallback.
package validation

import (
	"fmt"

	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/format"
	"github.com/iwvelando/mro-estimator/pkg/mathutil"
)

// Status is the overall verdict of a validation run.
type Status string

const (
	StatusValid             Status = "valid"
	StatusBlocked           Status = "blocked"
	StatusNeedsConfirmation Status = "needs_confirmation"
)

// Warning is an advisory, non-blocking note about an atypical value.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Outcome is the result of Validate.
type Outcome struct {
	Status Status `json:"status"`

	// Errors is keyed by profile field name; non-empty only when Blocked.
	Errors map[string]string `json:"errors,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`

	// ProposedFallback is set only when NeedsConfirmation.
	ProposedFallback *profile.Mix `json:"proposedFallback,omitempty"`
}

// Valid reports whether estimation may proceed without further input.
func (o Outcome) Valid() bool {
	return o.Status == StatusValid
}

// FirstErrorField names the field the form should focus.
func (o Outcome) FirstErrorField() string {
	if len(o.Errors) == 0 {
		return ""
	}
	return profile.FirstField(o.Errors)
}

// WarningMessages flattens warnings into plain strings for logging.
func (o Outcome) WarningMessages() []string {
	messages := make([]string, 0, len(o.Warnings))
	for _, w := range o.Warnings {
		messages = append(messages, w.Message)
	}
	return messages
}

// Validate checks p against the rules that apply to the selected concerns.
func Validate(p profile.Profile, sel profile.Selection) Outcome {
	p = p.Resolved()
	errs := make(map[string]string)

	if p.SiteCount < constants.MinSiteCount {
		errs[profile.FieldSiteCount] = "At least 1 site is required"
	}
	if p.Industry == "" {
		errs[profile.FieldIndustry] = "Please select an industry"
	} else if !profile.ValidIndustry(p.Industry) {
		errs[profile.FieldIndustry] = fmt.Sprintf("Unknown industry %q", p.Industry)
	}

	if sel.NeedsInventory() {
		if below(p.TotalInventoryValue, constants.MinInventoryValue) {
			errs[profile.FieldTotalInventoryValue] = "Value must be at least " + format.WholeCurrency(constants.MinInventoryValue)
		}
		if p.SKUCount < constants.MinSKUCount {
			errs[profile.FieldSKUCount] = "At least 1 SKU is required"
		}
		checkRange(errs, profile.FieldActivePercent, p.ActivePercent, 0, 100)
		checkRange(errs, profile.FieldObsoletePercent, p.ObsoletePercent, 0, 100)
		checkRange(errs, profile.FieldSpecialPercent, p.SpecialPercent, 0, 100)
	}

	if sel.Has(profile.Spend) {
		if below(p.AnnualSpend, constants.MinAnnualSpend) {
			errs[profile.FieldAnnualSpend] = "Annual spend is required"
		}
		checkRange(errs, profile.FieldHoldingCostRate, p.HoldingCostRate, 0, 100)
		checkRange(errs, profile.FieldWACCRate, p.WACCRate, 0, 100)
	}

	if sel.Has(profile.Downtime) {
		if below(p.DowntimeHoursPerSite, constants.MinDowntimeHours) {
			errs[profile.FieldDowntimeHoursPerSite] = "Downtime hours per site is required"
		}
		if below(p.DowntimeCostPerHour, constants.MinDowntimeCostPerHour) {
			errs[profile.FieldDowntimeCostPerHour] = "Downtime cost per hour is required"
		}
		checkRange(errs, profile.FieldCurrentServiceLevel, p.CurrentServiceLevel,
			constants.MinCurrentServiceLevel, constants.MaxCurrentServiceLevel)
		checkRange(errs, profile.FieldTargetServiceLevel, p.TargetServiceLevel,
			constants.MinTargetServiceLevel, constants.MaxTargetServiceLevel)
		checkRange(errs, profile.FieldStockoutPercent, p.StockoutPercent,
			constants.MinStockoutPercent, constants.MaxStockoutPercent)
	}

	outcome := Outcome{Warnings: Advisories(p, sel, errs)}

	switch {
	case len(errs) > 0:
		outcome.Status = StatusBlocked
		outcome.Errors = errs
	case sel.NeedsInventory() && !MixBalanced(p.Mix):
		fallback := profile.DefaultMix()
		outcome.Status = StatusNeedsConfirmation
		outcome.ProposedFallback = &fallback
	default:
		outcome.Status = StatusValid
	}

	return outcome
}

// MixBalanced reports whether the three shares sum to 100 within tolerance.
func MixBalanced(m profile.Mix) bool {
	return mathutil.WithinTolerance(m.Sum(), constants.PercentageMultiplier, constants.MixTolerance)
}

// ApplyFallback resets the mix to the default and marks it untouched.
func ApplyFallback(p profile.Profile) profile.Profile {
	p.Mix = profile.DefaultMix()
	p.MixEdited = false
	return p
}

// Advisories returns warnings for values outside typical benchmark ranges.
// Fields already carrying an error in errs are skipped.
func Advisories(p profile.Profile, sel profile.Selection, errs map[string]string) []Warning {
	var warnings []Warning
	ok := func(field string) bool {
		_, bad := errs[field]
		return !bad
	}

	if sel.NeedsInventory() && ok(profile.FieldTotalInventoryValue) && ok(profile.FieldSKUCount) {
		perSKU := mathutil.Ratio(p.TotalInventoryValue, float64(p.SKUCount))
		if perSKU < constants.TypicalValuePerSKULow || perSKU > constants.TypicalValuePerSKUHigh {
			warnings = append(warnings, Warning{
				Field: profile.FieldSKUCount,
				Message: fmt.Sprintf("Value per SKU of %s is outside the typical range of %s to %s",
					format.WholeCurrency(perSKU),
					format.WholeCurrency(constants.TypicalValuePerSKULow),
					format.WholeCurrency(constants.TypicalValuePerSKUHigh)),
			})
		}
	}

	if sel.Has(profile.Spend) && ok(profile.FieldAnnualSpend) && ok(profile.FieldTotalInventoryValue) {
		ratio := mathutil.Ratio(p.AnnualSpend, p.TotalInventoryValue)
		if ratio < constants.TypicalSpendRatioLow || ratio > constants.TypicalSpendRatioHigh {
			warnings = append(warnings, Warning{
				Field: profile.FieldAnnualSpend,
				Message: fmt.Sprintf("Annual spend is %s of inventory value, outside the typical range of %s to %s",
					format.Percent(mathutil.Round(ratio*100)),
					format.Percent(constants.TypicalSpendRatioLow*100),
					format.Percent(constants.TypicalSpendRatioHigh*100)),
			})
		}
	}

	if sel.Has(profile.Downtime) {
		if ok(profile.FieldDowntimeHoursPerSite) &&
			(p.DowntimeHoursPerSite < constants.TypicalDowntimeHoursLow || p.DowntimeHoursPerSite > constants.TypicalDowntimeHoursHigh) {
			warnings = append(warnings, Warning{
				Field: profile.FieldDowntimeHoursPerSite,
				Message: fmt.Sprintf("Downtime of %.0f hours per site is outside the typical range of %.0f to %.0f",
					p.DowntimeHoursPerSite, constants.TypicalDowntimeHoursLow, constants.TypicalDowntimeHoursHigh),
			})
		}
		if ok(profile.FieldDowntimeCostPerHour) &&
			(p.DowntimeCostPerHour < constants.TypicalDowntimeCostLow || p.DowntimeCostPerHour > constants.TypicalDowntimeCostHigh) {
			warnings = append(warnings, Warning{
				Field: profile.FieldDowntimeCostPerHour,
				Message: fmt.Sprintf("Downtime cost of %s per hour is outside the typical range of %s to %s",
					format.WholeCurrency(p.DowntimeCostPerHour),
					format.WholeCurrency(constants.TypicalDowntimeCostLow),
					format.WholeCurrency(constants.TypicalDowntimeCostHigh)),
			})
		}
	}

	return warnings
}

// below reports whether a required amount is missing, under its minimum or
// not a finite number.
func below(value, minimum float64) bool {
	return !mathutil.Finite(value) || value < minimum
}

func checkRange(errs map[string]string, field string, value, low, high float64) {
	if _, exists := errs[field]; exists {
		return
	}
	if !mathutil.Finite(value) || value < low || value > high {
		errs[field] = fmt.Sprintf("Must be between %g and %g", low, high)
	}
}
