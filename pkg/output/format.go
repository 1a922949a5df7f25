// Package output provides utilities for formatting and displaying estimate results.
package output

import (
	"fmt"
	"strings"

	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Line is one labelled figure of a result, in display order.
type Line struct {
	Section string
	Label   string
	Value   float64
	Hours   bool
}

// Lines flattens a result into display order. Sections for unselected
// concerns are omitted.
func Lines(r estimate.Result) []Line {
	lines := []Line{
		{Section: "profile", Label: "Active Materials Value", Value: r.ActiveValue},
		{Section: "profile", Label: "Non-Moving Value", Value: r.NonMovingValue},
		{Section: "profile", Label: "Special/Critical Value", Value: r.SpecialValue},
	}

	if inv := r.Inventory; inv != nil {
		lines = append(lines,
			Line{Section: "inventory", Label: "Active Increase (Service Protection)", Value: inv.ActiveIncrease},
			Line{Section: "inventory", Label: "Active Decrease", Value: inv.ActiveDecrease},
			Line{Section: "inventory", Label: "Network Pooling", Value: inv.Pooling},
			Line{Section: "inventory", Label: "VMI Disposition", Value: inv.VMI},
			Line{Section: "inventory", Label: "Deduplication", Value: inv.Dedup},
			Line{Section: "inventory", Label: "Total Inventory Reduction", Value: inv.TotalInvReduction},
		)
	}
	if spend := r.Spend; spend != nil {
		lines = append(lines,
			Line{Section: "spend", Label: "Holding Cost Savings", Value: spend.HoldingSavings},
			Line{Section: "spend", Label: "Cost of Capital Savings", Value: spend.WACCSavings},
			Line{Section: "spend", Label: "Purchase Price Variance", Value: spend.PPVSavings},
			Line{Section: "spend", Label: "Replenishment Suppression", Value: spend.ReplenishmentSuppression},
			Line{Section: "spend", Label: "Repairable Materials", Value: spend.RepairableMaterials},
			Line{Section: "spend", Label: "Expediting Reduction", Value: spend.Expediting},
			Line{Section: "spend", Label: "Total Spend Savings", Value: spend.TotalSpend},
		)
	}
	if dt := r.Downtime; dt != nil {
		lines = append(lines,
			Line{Section: "downtime", Label: "Organization Downtime Hours", Value: dt.OrgDtHours, Hours: true},
			Line{Section: "downtime", Label: "Unplanned Downtime Cost", Value: dt.UnplannedCost},
			Line{Section: "downtime", Label: "Optimized Downtime Hours", Value: dt.OptimizedDtHours, Hours: true},
			Line{Section: "downtime", Label: "Optimized Downtime Cost", Value: dt.OptimizedDtCost},
			Line{Section: "downtime", Label: "Avoidable Downtime Cost", Value: dt.AvoidableDtCost},
			Line{Section: "downtime", Label: "Downtime Savings", Value: dt.DtSavings},
		)
	}

	return append(lines, Line{Section: "total", Label: "Total Opportunity", Value: r.GrandTotal})
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(r estimate.Result) {
	p := message.NewPrinter(language.English)
	fmt.Printf("--- MRO optimization estimate (%s) ---\n", joinConcerns(r.Concerns))
	fmt.Printf("Section   | Item                                 | Amount\n")
	fmt.Printf("_______   | ____                                 | ______\n")
	for _, line := range Lines(r) {
		if line.Hours {
			_, _ = p.Printf("%-9s | %-36s | %.1f h\n", line.Section, line.Label, line.Value)
			continue
		}
		_, _ = p.Printf("%-9s | %-36s | %s\n", line.Section, line.Label, format.WholeCurrency(line.Value))
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(r estimate.Result) {
	fmt.Printf(`"section","item","amount"`)
	fmt.Printf("\n")
	for _, line := range Lines(r) {
		fmt.Printf(`"%s","%s","%.2f"`, line.Section, line.Label, line.Value)
		fmt.Printf("\n")
	}
}

func joinConcerns(concerns []string) string {
	if len(concerns) == 0 {
		return "none"
	}
	return strings.Join(concerns, ", ")
}
