// Package estimate holds the savings model: pure functions turning a
// validated profile and a concern selection into a result tree.
package estimate

import (
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/mathutil"
)

// Inventory is the inventory reduction breakdown.
type Inventory struct {
	// ActiveIncrease is a service-level protection investment, reported on
	// its own and never netted against the reduction.
	ActiveIncrease    float64 `json:"activeIncrease"`
	ActiveDecrease    float64 `json:"activeDecrease"`
	Pooling           float64 `json:"pooling"`
	VMI               float64 `json:"vmi"`
	Dedup             float64 `json:"dedup"`
	TotalInvReduction float64 `json:"totalInvReduction"`
}

// Spend is the spend savings breakdown.
type Spend struct {
	HoldingSavings           float64 `json:"holdingSavings"`
	WACCSavings              float64 `json:"waccSavings"`
	PPVSavings               float64 `json:"ppvSavings"`
	ReplenishmentSuppression float64 `json:"replenishmentSuppression"`
	RepairableMaterials      float64 `json:"repairableMaterials"`
	Expediting               float64 `json:"expediting"`
	TotalSpend               float64 `json:"totalSpend"`
}

// Downtime is the stockout-attributable downtime breakdown.
type Downtime struct {
	OrgDtHours       float64 `json:"orgDtHours"`
	UnplannedCost    float64 `json:"unplannedCost"`
	CurStockoutRate  float64 `json:"curStockoutRate"`
	TgtStockoutRate  float64 `json:"tgtStockoutRate"`
	OptimizedDtHours float64 `json:"optimizedDtHours"`
	OptimizedDtCost  float64 `json:"optimizedDtCost"`
	AvoidableDtCost  float64 `json:"avoidableDtCost"`
	DtSavings        float64 `json:"dtSavings"`
}

// Result is the estimation output. A breakdown is non-nil iff its concern
// was selected.
type Result struct {
	SchemaVersion int      `json:"schemaVersion"`
	Concerns      []string `json:"concerns"`

	ActiveValue    float64 `json:"activeValue"`
	NonMovingValue float64 `json:"nonMovingValue"`
	SpecialValue   float64 `json:"specialValue"`

	Inventory *Inventory `json:"inventory,omitempty"`
	Spend     *Spend     `json:"spend,omitempty"`
	Downtime  *Downtime  `json:"downtime,omitempty"`

	GrandTotal float64 `json:"grandTotal"`
}

// Estimate computes the result for p and sel. An untouched mix is estimated
// as the default mix. It is total over validated input: zero counts or
// percentages zero out dependent terms and no field is ever NaN or Inf.
func Estimate(p profile.Profile, sel profile.Selection) Result {
	p = p.Resolved()
	result := Result{
		SchemaVersion:  constants.SchemaVersion,
		Concerns:       sel.Strings(),
		ActiveValue:    mathutil.NonNegative(mathutil.ApplyPercentage(p.TotalInventoryValue, p.ActivePercent)),
		NonMovingValue: mathutil.NonNegative(mathutil.ApplyPercentage(p.TotalInventoryValue, p.ObsoletePercent)),
		SpecialValue:   mathutil.NonNegative(mathutil.ApplyPercentage(p.TotalInventoryValue, p.SpecialPercent)),
	}

	// Spend savings are driven by the inventory reduction even when the
	// inventory concern itself is not selected.
	inventory := inventoryBreakdown(p, result.ActiveValue, result.NonMovingValue)

	if sel.Has(profile.Inventory) {
		result.Inventory = &inventory
		result.GrandTotal += inventory.TotalInvReduction
	}
	if sel.Has(profile.Spend) {
		spend := spendBreakdown(p, result.ActiveValue, inventory.TotalInvReduction)
		result.Spend = &spend
		result.GrandTotal += spend.TotalSpend
	}
	if sel.Has(profile.Downtime) {
		downtime := downtimeBreakdown(p)
		result.Downtime = &downtime
		result.GrandTotal += downtime.DtSavings
	}

	return result
}

func inventoryBreakdown(p profile.Profile, activeValue, nonMovingValue float64) Inventory {
	inv := Inventory{
		ActiveIncrease: activeValue * constants.ActiveIncreaseRate,
		ActiveDecrease: activeValue * constants.ActiveDecreaseRate,
		Pooling:        (activeValue + nonMovingValue) * PoolingFactor(p.SiteCount),
		VMI:            activeValue * VMIFactor(p.SKUCount),
		Dedup:          (activeValue + nonMovingValue) * DedupFactor(p.SKUCount),
	}
	inv.TotalInvReduction = inv.ActiveDecrease + inv.Pooling + inv.VMI + inv.Dedup
	return inv
}

func spendBreakdown(p profile.Profile, activeValue, totalInvReduction float64) Spend {
	annualSpend := mathutil.NonNegative(p.AnnualSpend)
	spend := Spend{
		HoldingSavings:           mathutil.NonNegative(mathutil.ApplyPercentage(totalInvReduction, p.HoldingCostRate)),
		WACCSavings:              mathutil.NonNegative(mathutil.ApplyPercentage(totalInvReduction, p.WACCRate)),
		PPVSavings:               annualSpend * PPVFactor(annualSpend),
		ReplenishmentSuppression: totalInvReduction * constants.ReplenishmentRate,
		RepairableMaterials:      activeValue * constants.RepairableRate,
		Expediting:               annualSpend * constants.ExpeditingRate,
	}
	spend.TotalSpend = spend.HoldingSavings + spend.WACCSavings + spend.PPVSavings +
		spend.ReplenishmentSuppression + spend.RepairableMaterials + spend.Expediting
	return spend
}

func downtimeBreakdown(p profile.Profile) Downtime {
	sites := float64(p.SiteCount)
	if sites < 0 {
		sites = 0
	}
	dt := Downtime{
		OrgDtHours:      sites * mathutil.NonNegative(p.DowntimeHoursPerSite),
		CurStockoutRate: mathutil.NonNegative(1 - p.CurrentServiceLevel/constants.PercentageMultiplier),
		TgtStockoutRate: mathutil.NonNegative(1 - p.TargetServiceLevel/constants.PercentageMultiplier),
	}
	costPerHour := mathutil.NonNegative(p.DowntimeCostPerHour)
	dt.UnplannedCost = dt.OrgDtHours * costPerHour

	// A 100% current service level has no stockouts to scale from.
	if dt.CurStockoutRate > 0 {
		dt.OptimizedDtHours = dt.TgtStockoutRate * dt.OrgDtHours / dt.CurStockoutRate
	}
	dt.OptimizedDtCost = dt.OptimizedDtHours * costPerHour

	// A target below the current level would add downtime; credit nothing.
	dt.AvoidableDtCost = mathutil.NonNegative(dt.UnplannedCost - dt.OptimizedDtCost)
	dt.DtSavings = mathutil.NonNegative(mathutil.ApplyPercentage(dt.AvoidableDtCost, p.StockoutPercent))
	return dt
}
