// Package format renders currency and count figures for reports, warnings
// and CRM notes.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// WholeCurrency returns a dollar amount rounded to whole dollars (e.g., "$1,235").
func WholeCurrency(amount float64) string {
	rounded := math.Round(amount)
	if rounded < 0 {
		return "-$" + printer.Sprintf("%.0f", math.Abs(rounded))
	}
	return "$" + printer.Sprintf("%.0f", rounded)
}

// Count renders an integer with thousands separators (e.g., "12,000").
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Percent renders a percentage with up to one decimal (e.g., "67%", "12.5%").
func Percent(value float64) string {
	if value == math.Trunc(value) {
		return printer.Sprintf("%.0f%%", value)
	}
	return printer.Sprintf("%.1f%%", value)
}
