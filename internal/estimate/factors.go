package estimate

import "github.com/iwvelando/mro-estimator/pkg/constants"

// Each factor is a monotonic step function of a scale input so savings do
// not grow linearly with facility size.

// PoolingFactor is the share of active and non-moving stock freed by
// cross-site pooling.
func PoolingFactor(siteCount int) float64 {
	switch {
	case siteCount <= 1:
		return 0
	case siteCount <= constants.PoolingSmallNetwork:
		return constants.PoolingFactorSmall
	default:
		return constants.PoolingFactorLarge
	}
}

// VMIFactor is the share of active stock moved to vendor-managed inventory.
func VMIFactor(skuCount int) float64 {
	switch {
	case skuCount < constants.SKUTierLow:
		return 0.05
	case skuCount <= constants.SKUTierHigh:
		return 0.07
	default:
		return 0.09
	}
}

// DedupFactor is the share of active and non-moving stock removed by
// eliminating duplicate parts.
func DedupFactor(skuCount int) float64 {
	switch {
	case skuCount < constants.SKUTierLow:
		return 0.01
	case skuCount <= constants.SKUTierHigh:
		return 0.025
	default:
		return 0.04
	}
}

// PPVFactor is the purchase price variance captured on annual spend.
func PPVFactor(annualSpend float64) float64 {
	switch {
	case annualSpend < constants.SpendTierLow:
		return 0.05
	case annualSpend <= constants.SpendTierHigh:
		return 0.07
	default:
		return 0.09
	}
}
