// Package domain contains the dashboard view model: the token records shown
// to the user, the reward projection and the user actions.
package domain

import (
	"math"
	"time"
)

// YearsPerSecond converts seconds to years on a 365.25-day year.
const YearsPerSecond = 0.0000000317098

// SecondsToYears converts a duration in seconds to fractional years.
func SecondsToYears(seconds float64) float64 {
	return seconds * YearsPerSecond
}

// ProjectReward estimates the reward accrued since checkpoint for a stake
// worth stakedValue at aprPercent a year. now is rounded up to the whole
// second. The result is a display estimate in the unit of stakedValue and is
// zero whenever the checkpoint is unset, not in the past, or any input is
// negative.
func ProjectReward(aprPercent, stakedValue float64, checkpoint int64, now time.Time) float64 {
	if checkpoint <= 0 || aprPercent < 0 || stakedValue < 0 {
		return 0
	}
	if math.IsNaN(aprPercent) || math.IsNaN(stakedValue) {
		return 0
	}

	nowSec := now.Unix()
	if now.Nanosecond() > 0 {
		nowSec++
	}

	elapsed := nowSec - checkpoint
	if elapsed <= 0 {
		return 0
	}

	return stakedValue * (aprPercent / 100) * SecondsToYears(float64(elapsed))
}
