package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iwvelando/mro-estimator/pkg/constants"
)

// OutputFormats lists the formats the estimate command can print.
var OutputFormats = []string{constants.OutputFormatPretty, constants.OutputFormatCSV}

// ValidateOutputFormat checks if the output format is one of OutputFormats.
func ValidateOutputFormat(format string) error {
	if !slices.Contains(OutputFormats, format) {
		return fmt.Errorf("expected output format of %s, got %q", strings.Join(OutputFormats, " or "), format)
	}
	return nil
}
