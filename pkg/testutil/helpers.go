// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/output"
)

// ReferenceGrandTotal is the inventory-only total for InventoryScenario.
const ReferenceGrandTotal = 189900.0

// InventoryScenario returns a single-site manufacturing profile with the
// default mix and only the inventory concern selected.
func InventoryScenario() (profile.Profile, profile.Selection) {
	p := profile.Default()
	p.SiteCount = 1
	p.TotalInventoryValue = 1000000
	p.SKUCount = 5000
	p.Industry = "Manufacturing"
	return p, profile.NewSelection(profile.Inventory)
}

// FindLine finds a report line by section and label.
// Returns a pointer to the line if found, nil otherwise.
func FindLine(lines []output.Line, section, label string) *output.Line {
	for i := range lines {
		if lines[i].Section == section && lines[i].Label == label {
			return &lines[i]
		}
	}
	return nil
}
