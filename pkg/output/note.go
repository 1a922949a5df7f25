package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/pkg/format"
)

// SummaryNote renders a calculation as the plain-text note attached to a
// CRM contact. Only sections for the selected concerns are included.
func SummaryNote(p estimate.Payload, date time.Time) string {
	var b strings.Builder

	b.WriteString("MRO Inventory Optimization Calculator Results\n")
	b.WriteString("==============================================\n")
	fmt.Fprintf(&b, "Date: %s\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Concerns: %s\n", joinConcerns(p.Concerns))

	b.WriteString("\nINPUT PROFILE:\n")
	fmt.Fprintf(&b, "- Number of Sites: %s\n", format.Count(p.SiteCount))
	fmt.Fprintf(&b, "- Industry: %s\n", nonEmpty(p.Industry))
	fmt.Fprintf(&b, "- Total Inventory Value: %s\n", format.WholeCurrency(p.TotalInventoryValue))
	fmt.Fprintf(&b, "- SKU Count: %s\n", format.Count(p.SKUCount))
	fmt.Fprintf(&b, "- Active Materials: %s\n", format.Percent(p.ActivePercent))
	fmt.Fprintf(&b, "- Obsolete/Non-Moving: %s\n", format.Percent(p.ObsoletePercent))
	fmt.Fprintf(&b, "- Special/Critical Items: %s\n", format.Percent(p.SpecialPercent))

	concerns := make(map[string]bool, len(p.Concerns))
	for _, c := range p.Concerns {
		concerns[c] = true
	}

	if concerns["inventory"] {
		b.WriteString("\nINVENTORY OPPORTUNITIES:\n")
		fmt.Fprintf(&b, "- Active Material Optimization: %s\n", format.WholeCurrency(p.ActiveDecrease))
		fmt.Fprintf(&b, "- Network Optimization & Transfers: %s\n", format.WholeCurrency(p.Pooling))
		fmt.Fprintf(&b, "- VMI Disposition: %s\n", format.WholeCurrency(p.VMI))
		fmt.Fprintf(&b, "- Deduplication Savings: %s\n", format.WholeCurrency(p.Dedup))
		fmt.Fprintf(&b, "- Total Inventory Reduction: %s\n", format.WholeCurrency(p.TotalInvReduction))
		fmt.Fprintf(&b, "- Service Protection Investment: %s\n", format.WholeCurrency(p.ActiveIncrease))
	}
	if concerns["spend"] {
		b.WriteString("\nSPEND OPPORTUNITIES:\n")
		fmt.Fprintf(&b, "- Annual MRO Spend: %s\n", format.WholeCurrency(p.AnnualSpend))
		fmt.Fprintf(&b, "- Holding Cost Savings: %s\n", format.WholeCurrency(p.HoldingSavings))
		fmt.Fprintf(&b, "- Cost of Capital Savings: %s\n", format.WholeCurrency(p.WACCSavings))
		fmt.Fprintf(&b, "- Purchase Price Variance: %s\n", format.WholeCurrency(p.PPVSavings))
		fmt.Fprintf(&b, "- Replenishment Suppression: %s\n", format.WholeCurrency(p.ReplenishmentSuppression))
		fmt.Fprintf(&b, "- Repairable Materials: %s\n", format.WholeCurrency(p.RepairableMaterials))
		fmt.Fprintf(&b, "- Expediting Reduction: %s\n", format.WholeCurrency(p.Expediting))
		fmt.Fprintf(&b, "- Total Spend Savings: %s\n", format.WholeCurrency(p.TotalSpend))
	}
	if concerns["downtime"] {
		b.WriteString("\nDOWNTIME OPPORTUNITIES:\n")
		fmt.Fprintf(&b, "- Current Service Level: %s\n", format.Percent(p.CurrentServiceLevel))
		fmt.Fprintf(&b, "- Target Service Level: %s\n", format.Percent(p.TargetServiceLevel))
		fmt.Fprintf(&b, "- Unplanned Downtime Cost: %s\n", format.WholeCurrency(p.UnplannedCost))
		fmt.Fprintf(&b, "- Optimized Downtime Cost: %s\n", format.WholeCurrency(p.OptimizedDtCost))
		fmt.Fprintf(&b, "- Downtime Savings: %s\n", format.WholeCurrency(p.DtSavings))
	}

	fmt.Fprintf(&b, "\nTOTAL OPTIMIZATION OPPORTUNITY: %s", format.WholeCurrency(p.GrandTotal))
	return b.String()
}

func nonEmpty(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
