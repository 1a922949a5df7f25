package estimate

import (
	"fmt"

	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/mathutil"
)

// Payload is the canonical, versioned flat form of a calculation. It is what
// lead capture stores and forwards to the CRM. Figures for concerns that
// were not selected are zero.
type Payload struct {
	SchemaVersion int      `json:"schemaVersion"`
	Concerns      []string `json:"concerns"`

	SiteCount            int     `json:"siteCount"`
	TotalInventoryValue  float64 `json:"totalInventoryValue"`
	SKUCount             int     `json:"skuCount"`
	Industry             string  `json:"industry"`
	ActivePercent        float64 `json:"activePercent"`
	ObsoletePercent      float64 `json:"obsoletePercent"`
	SpecialPercent       float64 `json:"specialPercent"`
	AnnualSpend          float64 `json:"annualSpend"`
	HoldingCostRate      float64 `json:"holdingCostRate"`
	WACCRate             float64 `json:"waccRate"`
	DowntimeHoursPerSite float64 `json:"downtimeHoursPerSite"`
	DowntimeCostPerHour  float64 `json:"downtimeCostPerHour"`
	CurrentServiceLevel  float64 `json:"currentServiceLevel"`
	TargetServiceLevel   float64 `json:"targetServiceLevel"`
	StockoutPercent      float64 `json:"stockoutPercent"`

	ActiveIncrease    float64 `json:"activeIncrease"`
	ActiveDecrease    float64 `json:"activeDecrease"`
	Pooling           float64 `json:"pooling"`
	VMI               float64 `json:"vmi"`
	Dedup             float64 `json:"dedup"`
	TotalInvReduction float64 `json:"totalInvReduction"`

	HoldingSavings           float64 `json:"holdingSavings"`
	WACCSavings              float64 `json:"waccSavings"`
	PPVSavings               float64 `json:"ppvSavings"`
	ReplenishmentSuppression float64 `json:"replenishmentSuppression"`
	RepairableMaterials      float64 `json:"repairableMaterials"`
	Expediting               float64 `json:"expediting"`
	TotalSpend               float64 `json:"totalSpend"`

	OrgDtHours       float64 `json:"orgDtHours"`
	UnplannedCost    float64 `json:"unplannedCost"`
	CurStockoutRate  float64 `json:"curStockoutRate"`
	TgtStockoutRate  float64 `json:"tgtStockoutRate"`
	OptimizedDtHours float64 `json:"optimizedDtHours"`
	OptimizedDtCost  float64 `json:"optimizedDtCost"`
	DtSavings        float64 `json:"dtSavings"`

	GrandTotal float64 `json:"grandTotal"`
}

// Flatten builds the canonical payload for p and its result.
func Flatten(p profile.Profile, r Result) Payload {
	p = p.Resolved()
	payload := Payload{
		SchemaVersion:        constants.SchemaVersion,
		Concerns:             append([]string{}, r.Concerns...),
		SiteCount:            p.SiteCount,
		TotalInventoryValue:  p.TotalInventoryValue,
		SKUCount:             p.SKUCount,
		Industry:             p.Industry,
		ActivePercent:        p.ActivePercent,
		ObsoletePercent:      p.ObsoletePercent,
		SpecialPercent:       p.SpecialPercent,
		AnnualSpend:          p.AnnualSpend,
		HoldingCostRate:      p.HoldingCostRate,
		WACCRate:             p.WACCRate,
		DowntimeHoursPerSite: p.DowntimeHoursPerSite,
		DowntimeCostPerHour:  p.DowntimeCostPerHour,
		CurrentServiceLevel:  p.CurrentServiceLevel,
		TargetServiceLevel:   p.TargetServiceLevel,
		StockoutPercent:      p.StockoutPercent,
		GrandTotal:           r.GrandTotal,
	}

	if inv := r.Inventory; inv != nil {
		payload.ActiveIncrease = inv.ActiveIncrease
		payload.ActiveDecrease = inv.ActiveDecrease
		payload.Pooling = inv.Pooling
		payload.VMI = inv.VMI
		payload.Dedup = inv.Dedup
		payload.TotalInvReduction = inv.TotalInvReduction
	}
	if spend := r.Spend; spend != nil {
		payload.HoldingSavings = spend.HoldingSavings
		payload.WACCSavings = spend.WACCSavings
		payload.PPVSavings = spend.PPVSavings
		payload.ReplenishmentSuppression = spend.ReplenishmentSuppression
		payload.RepairableMaterials = spend.RepairableMaterials
		payload.Expediting = spend.Expediting
		payload.TotalSpend = spend.TotalSpend
	}
	if dt := r.Downtime; dt != nil {
		payload.OrgDtHours = dt.OrgDtHours
		payload.UnplannedCost = dt.UnplannedCost
		payload.CurStockoutRate = dt.CurStockoutRate
		payload.TgtStockoutRate = dt.TgtStockoutRate
		payload.OptimizedDtHours = dt.OptimizedDtHours
		payload.OptimizedDtCost = dt.OptimizedDtCost
		payload.DtSavings = dt.DtSavings
	}

	return payload
}

// Profile recovers the input profile carried by the payload. The payload
// records the mix that was estimated, so it is always treated as edited.
func (p Payload) Profile() profile.Profile {
	return profile.Profile{
		MixEdited:           true,
		SiteCount:           p.SiteCount,
		TotalInventoryValue: p.TotalInventoryValue,
		SKUCount:            p.SKUCount,
		Mix: profile.Mix{
			ActivePercent:   p.ActivePercent,
			ObsoletePercent: p.ObsoletePercent,
			SpecialPercent:  p.SpecialPercent,
		},
		AnnualSpend:          p.AnnualSpend,
		HoldingCostRate:      p.HoldingCostRate,
		WACCRate:             p.WACCRate,
		DowntimeHoursPerSite: p.DowntimeHoursPerSite,
		DowntimeCostPerHour:  p.DowntimeCostPerHour,
		CurrentServiceLevel:  p.CurrentServiceLevel,
		TargetServiceLevel:   p.TargetServiceLevel,
		StockoutPercent:      p.StockoutPercent,
		Industry:             p.Industry,
	}
}

// Selection recovers the concern selection carried by the payload.
func (p Payload) Selection() (profile.Selection, error) {
	return profile.ParseSelection(p.Concerns)
}

// Recompute re-derives every figure from the payload's inputs. The returned
// payload is authoritative; drift reports whether any client-supplied figure
// differed from it by more than a cent.
func (p Payload) Recompute() (Payload, bool, error) {
	if p.SchemaVersion != constants.SchemaVersion {
		return Payload{}, false, fmt.Errorf("unsupported calculation schema version %d", p.SchemaVersion)
	}
	sel, err := p.Selection()
	if err != nil {
		return Payload{}, false, err
	}
	in := p.Profile()
	fresh := Flatten(in, Estimate(in, sel))

	drift := false
	want := fresh.figures()
	for i, got := range p.figures() {
		if !mathutil.WithinTolerance(got, want[i], constants.CurrencyTolerance) {
			drift = true
			break
		}
	}
	return fresh, drift, nil
}

func (p Payload) figures() []float64 {
	return []float64{
		p.ActiveIncrease, p.ActiveDecrease, p.Pooling, p.VMI, p.Dedup, p.TotalInvReduction,
		p.HoldingSavings, p.WACCSavings, p.PPVSavings, p.ReplenishmentSuppression,
		p.RepairableMaterials, p.Expediting, p.TotalSpend,
		p.OrgDtHours, p.UnplannedCost, p.CurStockoutRate, p.TgtStockoutRate,
		p.OptimizedDtHours, p.OptimizedDtCost, p.DtSavings,
		p.GrandTotal,
	}
}
