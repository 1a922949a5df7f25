package validation

import (
	"math"
	"testing"

	"github.com/iwvelando/mro-estimator/internal/profile"
)

func baseProfile() profile.Profile {
	p := profile.Default()
	p.SiteCount = 1
	p.TotalInventoryValue = 1_000_000
	p.SKUCount = 1_000
	p.AnnualSpend = 500_000
	p.DowntimeHoursPerSite = 600
	p.DowntimeCostPerHour = 12_000
	p.Industry = "Manufacturing"
	return p
}

func allConcerns() profile.Selection {
	return profile.NewSelection(profile.Inventory, profile.Spend, profile.Downtime)
}

func TestValidateValidProfile(t *testing.T) {
	outcome := Validate(baseProfile(), allConcerns())
	if !outcome.Valid() {
		t.Fatalf("expected valid outcome, got %+v", outcome)
	}
	if len(outcome.Warnings) != 0 {
		t.Fatalf("expected no warnings for typical values, got %+v", outcome.Warnings)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		concerns  profile.Selection
		mutate    func(*profile.Profile)
		wantField string
	}{
		{"site count below one", allConcerns(), func(p *profile.Profile) { p.SiteCount = 0 }, profile.FieldSiteCount},
		{"industry missing", allConcerns(), func(p *profile.Profile) { p.Industry = "" }, profile.FieldIndustry},
		{"industry unknown", allConcerns(), func(p *profile.Profile) { p.Industry = "Retail" }, profile.FieldIndustry},
		{"inventory value below minimum", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.TotalInventoryValue = 999 }, profile.FieldTotalInventoryValue},
		{"inventory value required for spend", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.TotalInventoryValue = 0 }, profile.FieldTotalInventoryValue},
		{"sku count missing", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.SKUCount = 0 }, profile.FieldSKUCount},
		{"annual spend missing", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.AnnualSpend = 0 }, profile.FieldAnnualSpend},
		{"downtime hours missing", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeHoursPerSite = 0 }, profile.FieldDowntimeHoursPerSite},
		{"downtime cost missing", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeCostPerHour = 0.5 }, profile.FieldDowntimeCostPerHour},
		{"current service level too low", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.CurrentServiceLevel = 70 }, profile.FieldCurrentServiceLevel},
		{"target service level too high", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.TargetServiceLevel = 99 }, profile.FieldTargetServiceLevel},
		{"stockout percent too high", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.StockoutPercent = 60 }, profile.FieldStockoutPercent},
		{"holding rate out of range", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.HoldingCostRate = 150 }, profile.FieldHoldingCostRate},
		{"negative mix share", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.SpecialPercent, p.MixEdited = -1, true }, profile.FieldSpecialPercent},
		{"NaN mix share", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.ActivePercent, p.MixEdited = math.NaN(), true }, profile.FieldActivePercent},
		{"infinite inventory value", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.TotalInventoryValue = math.Inf(1) }, profile.FieldTotalInventoryValue},
		{"NaN annual spend", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.AnnualSpend = math.NaN() }, profile.FieldAnnualSpend},
		{"infinite downtime hours", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeHoursPerSite = math.Inf(1) }, profile.FieldDowntimeHoursPerSite},
		{"NaN downtime cost", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeCostPerHour = math.NaN() }, profile.FieldDowntimeCostPerHour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			tt.mutate(&p)
			outcome := Validate(p, tt.concerns)
			if outcome.Status != StatusBlocked {
				t.Fatalf("expected blocked outcome, got %s", outcome.Status)
			}
			if _, ok := outcome.Errors[tt.wantField]; !ok {
				t.Fatalf("expected error on %s, got %+v", tt.wantField, outcome.Errors)
			}
		})
	}
}

func TestValidateIgnoresUnselectedConcerns(t *testing.T) {
	p := baseProfile()
	p.TotalInventoryValue = 0
	p.SKUCount = 0
	p.AnnualSpend = 0

	outcome := Validate(p, profile.NewSelection(profile.Downtime))
	if !outcome.Valid() {
		t.Fatalf("expected inventory and spend fields to be ignored for downtime-only selection, got %+v", outcome.Errors)
	}

	p = baseProfile()
	p.DowntimeHoursPerSite = 0
	p.DowntimeCostPerHour = 0
	outcome = Validate(p, profile.NewSelection(profile.Inventory))
	if !outcome.Valid() {
		t.Fatalf("expected downtime fields to be ignored for inventory-only selection, got %+v", outcome.Errors)
	}
}

func TestValidateUntouchedMixAssumesDefault(t *testing.T) {
	p := baseProfile()
	p.ActivePercent = 90
	p.ObsoletePercent = 90
	p.SpecialPercent = 90
	p.MixEdited = false

	outcome := Validate(p, profile.NewSelection(profile.Inventory))
	if !outcome.Valid() {
		t.Fatalf("expected untouched mix to fall back to the default, got %s", outcome.Status)
	}
	if resolved := p.Resolved(); resolved.Mix != profile.DefaultMix() {
		t.Fatalf("expected default mix to be assumed, got %+v", resolved.Mix)
	}

	p.MixEdited = true
	if outcome := Validate(p, profile.NewSelection(profile.Inventory)); outcome.Status != StatusNeedsConfirmation {
		t.Fatalf("expected the same shares to need confirmation once edited, got %s", outcome.Status)
	}
}

func TestValidateEditedMixNeedsConfirmation(t *testing.T) {
	p := baseProfile()
	p.ActivePercent = 60
	p.ObsoletePercent = 30
	p.SpecialPercent = 20
	p.MixEdited = true

	outcome := Validate(p, profile.NewSelection(profile.Inventory))
	if outcome.Status != StatusNeedsConfirmation {
		t.Fatalf("expected needs_confirmation, got %s", outcome.Status)
	}
	if outcome.ProposedFallback == nil || *outcome.ProposedFallback != profile.DefaultMix() {
		t.Fatalf("expected default mix fallback, got %+v", outcome.ProposedFallback)
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("expected mix imbalance not to be reported as an error, got %+v", outcome.Errors)
	}

	fixed := ApplyFallback(p)
	if fixed.MixEdited || !MixBalanced(fixed.Mix) {
		t.Fatalf("expected fallback to restore the default mix, got %+v", fixed.Mix)
	}
	if outcome := Validate(fixed, profile.NewSelection(profile.Inventory)); !outcome.Valid() {
		t.Fatalf("expected fallback profile to validate, got %s", outcome.Status)
	}
}

func TestValidateEditedMixWithinTolerance(t *testing.T) {
	p := baseProfile()
	p.ActivePercent = 66.6
	p.ObsoletePercent = 23.2
	p.SpecialPercent = 10.7
	p.MixEdited = true

	if outcome := Validate(p, profile.NewSelection(profile.Spend)); !outcome.Valid() {
		t.Fatalf("expected mix within tolerance to validate, got %s", outcome.Status)
	}
}

func TestValidateEditedMixIgnoredForDowntimeOnly(t *testing.T) {
	p := baseProfile()
	p.ActivePercent = 90
	p.MixEdited = true

	if outcome := Validate(p, profile.NewSelection(profile.Downtime)); !outcome.Valid() {
		t.Fatalf("expected mix not to matter for downtime-only selection, got %s", outcome.Status)
	}
}

func TestValidateErrorsWinOverMixConfirmation(t *testing.T) {
	p := baseProfile()
	p.SiteCount = 0
	p.ActivePercent = 90
	p.MixEdited = true

	outcome := Validate(p, profile.NewSelection(profile.Inventory))
	if outcome.Status != StatusBlocked {
		t.Fatalf("expected blocked, got %s", outcome.Status)
	}
	if outcome.ProposedFallback != nil {
		t.Fatal("expected no fallback while field errors remain")
	}
}

func TestFirstErrorField(t *testing.T) {
	p := baseProfile()
	p.SKUCount = 0
	p.DowntimeCostPerHour = 0
	p.SiteCount = 0

	outcome := Validate(p, allConcerns())
	if got := outcome.FirstErrorField(); got != profile.FieldSiteCount {
		t.Fatalf("expected focus on %s, got %s", profile.FieldSiteCount, got)
	}
	if got := (Outcome{}).FirstErrorField(); got != "" {
		t.Fatalf("expected no focus field for empty outcome, got %s", got)
	}
}

func TestAdvisoryWarnings(t *testing.T) {
	tests := []struct {
		name      string
		concerns  profile.Selection
		mutate    func(*profile.Profile)
		wantField string
	}{
		{"value per SKU too low", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.SKUCount = 5_000 }, profile.FieldSKUCount},
		{"value per SKU too high", profile.NewSelection(profile.Inventory), func(p *profile.Profile) { p.SKUCount = 100 }, profile.FieldSKUCount},
		{"spend ratio too high", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.AnnualSpend = 2_500_000 }, profile.FieldAnnualSpend},
		{"spend ratio too low", profile.NewSelection(profile.Spend), func(p *profile.Profile) { p.AnnualSpend = 100_000 }, profile.FieldAnnualSpend},
		{"downtime hours too low", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeHoursPerSite = 100 }, profile.FieldDowntimeHoursPerSite},
		{"downtime hours too high", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeHoursPerSite = 2_000 }, profile.FieldDowntimeHoursPerSite},
		{"downtime cost too low", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeCostPerHour = 1_000 }, profile.FieldDowntimeCostPerHour},
		{"downtime cost too high", profile.NewSelection(profile.Downtime), func(p *profile.Profile) { p.DowntimeCostPerHour = 50_000 }, profile.FieldDowntimeCostPerHour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			tt.mutate(&p)
			outcome := Validate(p, tt.concerns)
			if !outcome.Valid() {
				t.Fatalf("expected warnings never to block, got %s with %+v", outcome.Status, outcome.Errors)
			}
			found := false
			for _, w := range outcome.Warnings {
				if w.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected warning on %s, got %+v", tt.wantField, outcome.Warnings)
			}
			if len(outcome.WarningMessages()) != len(outcome.Warnings) {
				t.Fatal("expected one message per warning")
			}
		})
	}
}

func TestAdvisoriesSkipErroredFields(t *testing.T) {
	p := baseProfile()
	p.SKUCount = 0

	outcome := Validate(p, profile.NewSelection(profile.Inventory))
	for _, w := range outcome.Warnings {
		if w.Field == profile.FieldSKUCount {
			t.Fatalf("expected no value-per-SKU warning when SKU count is invalid, got %+v", w)
		}
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	p := baseProfile()
	p.SKUCount = 0
	p.AnnualSpend = 0
	a := Validate(p, allConcerns())
	b := Validate(p, allConcerns())
	if len(a.Errors) != len(b.Errors) || a.Status != b.Status {
		t.Fatalf("expected identical outcomes, got %+v and %+v", a, b)
	}
	for k, v := range a.Errors {
		if b.Errors[k] != v {
			t.Fatalf("error on %s differs: %q vs %q", k, v, b.Errors[k])
		}
	}
}
