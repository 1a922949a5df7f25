// Package export renders an estimate as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/output"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	InputsSheet  = "Inputs"
	ResultsSheet = "Results"
)

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook builds a workbook with the profile on one sheet and the result
// breakdown on another.
func Workbook(p profile.Profile, r estimate.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", InputsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ResultsSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return nil, err
	}

	inputs := [][]interface{}{
		{"Field", "Value"},
		{"Concerns", strings.Join(r.Concerns, ", ")},
		{"Industry", p.Industry},
		{"Number of Sites", p.SiteCount},
		{"Total Inventory Value", p.TotalInventoryValue},
		{"SKU Count", p.SKUCount},
		{"Active Materials %", p.ActivePercent},
		{"Obsolete/Non-Moving %", p.ObsoletePercent},
		{"Special/Critical %", p.SpecialPercent},
		{"Annual MRO Spend", p.AnnualSpend},
		{"Holding Cost Rate %", p.HoldingCostRate},
		{"Cost of Capital %", p.WACCRate},
		{"Downtime Hours per Site", p.DowntimeHoursPerSite},
		{"Downtime Cost per Hour", p.DowntimeCostPerHour},
		{"Current Service Level %", p.CurrentServiceLevel},
		{"Target Service Level %", p.TargetServiceLevel},
		{"Stockout-Attributable Downtime %", p.StockoutPercent},
	}
	if err := writeRows(f, InputsSheet, inputs); err != nil {
		return nil, err
	}

	results := [][]interface{}{{"Section", "Item", "Amount"}}
	for _, line := range output.Lines(r) {
		results = append(results, []interface{}{line.Section, line.Label, line.Value})
	}
	if err := writeRows(f, ResultsSheet, results); err != nil {
		return nil, err
	}

	for _, sheet := range []string{InputsSheet, ResultsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(ResultsSheet, "C2", fmt.Sprintf("C%d", len(results)), moneyStyle); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(InputsSheet, "A", "A", 36)
	_ = f.SetColWidth(InputsSheet, "B", "B", 24)
	_ = f.SetColWidth(ResultsSheet, "A", "A", 12)
	_ = f.SetColWidth(ResultsSheet, "B", "B", 40)
	_ = f.SetColWidth(ResultsSheet, "C", "C", 18)

	return f, nil
}

// Write streams the workbook for p and r to w.
func Write(w io.Writer, p profile.Profile, r estimate.Result) error {
	f, err := Workbook(p, r)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}
