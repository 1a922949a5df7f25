// Package constants provides shared constants for the mro-estimator application.
package constants

// SchemaVersion is the version of the canonical calculation payload.
const SchemaVersion = 1

// Default inventory mix, in percent of total inventory value.
const (
	DefaultActivePercent   = 67.0
	DefaultObsoletePercent = 23.0
	DefaultSpecialPercent  = 10.0
)

// Default rate parameters, in percent.
const (
	DefaultHoldingCostRate     = 15.0
	DefaultWACCRate            = 7.0
	DefaultCurrentServiceLevel = 88.0
	DefaultTargetServiceLevel  = 95.0
	DefaultStockoutPercent     = 50.0
)

// Input bounds.
const (
	MinSiteCount           = 1
	MinInventoryValue      = 1000.0
	MinSKUCount            = 1
	MinAnnualSpend         = 1.0
	MinDowntimeHours       = 1.0
	MinDowntimeCostPerHour = 1.0

	MinCurrentServiceLevel = 75.0
	MaxCurrentServiceLevel = 100.0
	MinTargetServiceLevel  = 0.0
	MaxTargetServiceLevel  = 98.0
	MinStockoutPercent     = 0.0
	MaxStockoutPercent     = 50.0

	// MixTolerance is how far the three mix percentages may drift from 100.
	MixTolerance = 1.0
)

// Advisory ranges. Values outside these produce warnings, never errors.
const (
	TypicalValuePerSKULow    = 500.0
	TypicalValuePerSKUHigh   = 2000.0
	TypicalSpendRatioLow     = 0.35
	TypicalSpendRatioHigh    = 0.75
	TypicalDowntimeHoursLow  = 300.0
	TypicalDowntimeHoursHigh = 1200.0
	TypicalDowntimeCostLow   = 5600.0
	TypicalDowntimeCostHigh  = 22000.0
)

// Benchmark factors applied by the estimation engine.
const (
	ActiveIncreaseRate  = 0.06
	ActiveDecreaseRate  = 0.22
	ReplenishmentRate   = 0.45
	RepairableRate      = 0.0275
	ExpeditingRate      = 0.015
	SKUTierLow          = 50000
	SKUTierHigh         = 100000
	SpendTierLow        = 50_000_000.0
	SpendTierHigh       = 100_000_000.0
	PoolingSmallNetwork = 5
	PoolingFactorSmall  = 0.04
	PoolingFactorLarge  = 0.06
)

// Financial constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. MRO_CRM_ACCESSTOKEN.
	EnvPrefix = "MRO"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum JSON request body (64 KB)
	DefaultMaxBodySizeBytes int64 = 64 * 1024

	// DefaultSessionTTL is how long an idle wizard session is kept, as a duration string.
	DefaultSessionTTL = "2h"

	// DefaultLeadRatePerMinute limits lead submissions per server.
	DefaultLeadRatePerMinute = 60
)

// Storage drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// CRM defaults
const (
	DefaultCRMBaseURL  = "https://api.hubapi.com"
	DefaultCRMFormsURL = "https://api.hsforms.com"
	DefaultCRMTimeout  = "15s"

	// NoteToContactAssociation is HubSpot's association type id for note → contact.
	NoteToContactAssociation = 202
)
