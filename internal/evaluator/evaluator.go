// Package evaluator decides whether a price observation satisfies an
// alert's trigger condition. Decisions are pure: no I/O, no clock, so the
// same alert and price always evaluate the same way.
package evaluator

import "shoppersprint-alerts/internal/models"

// ShouldTrigger reports whether currentPrice satisfies the alert's
// condition. Prices are minor units (cents) of the alert's currency; the
// caller is responsible for never mixing currencies.
//
// Both threshold comparisons are inclusive, so an observation exactly at
// the target fires. A percentage alert without a threshold is inert rather
// than an error, as is a percentage alert with a zero target price.
// Unknown alert types never trigger.
func ShouldTrigger(alert *models.PriceAlert, currentPrice int64) bool {
	switch alert.AlertType {
	case models.AlertTypeBelow:
		return currentPrice <= alert.TargetPrice
	case models.AlertTypeAbove:
		return currentPrice >= alert.TargetPrice
	case models.AlertTypePercentage:
		if alert.Threshold == nil || alert.TargetPrice == 0 {
			return false
		}
		change := percentChange(alert.TargetPrice, currentPrice)
		return change >= *alert.Threshold
	default:
		return false
	}
}

// percentChange returns the absolute percent difference of current from
// base. base must be non-zero.
func percentChange(base, current int64) float64 {
	diff := current - base
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(base) * 100
}
