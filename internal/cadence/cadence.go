// Package cadence classifies how often a charge repeats from the calendar
// dates it was observed on.
package cadence

import (
	"math"
	"time"

	"github.com/dvloznov/finance-insights/internal/money"
)

// Cadence is the inferred recurrence period of a charge.
type Cadence string

const (
	Weekly   Cadence = "weekly"
	Biweekly Cadence = "biweekly"
	Monthly  Cadence = "monthly"
	Yearly   Cadence = "yearly"
	Unknown  Cadence = "unknown"
)

// MinConfidence is reported for series too short or too noisy to trust.
const MinConfidence = 0.1

// Result is the classification of one date series. PeriodDays is nil only
// when fewer than two dates were supplied.
type Result struct {
	Cadence    Cadence `json:"cadence"`
	PeriodDays *int    `json:"periodDays"`
	Confidence float64 `json:"confidence"`
}

type band struct {
	cadence   Cadence
	target    float64
	tolerance float64
	period    int
	floor     float64
}

// Checked in order; the first band containing the mean interval wins.
var bands = []band{
	{Monthly, 30, 3, 30, 0.7},
	{Monthly, 28, 3, 28, 0.65},
	{Biweekly, 14, 2, 14, 0.6},
	{Weekly, 7, 1, 7, 0.6},
	{Yearly, 365, 10, 365, 0.6},
}

// Detect classifies ascending, de-duplicated calendar dates.
func Detect(dates []time.Time) Result {
	if len(dates) < 2 {
		return Result{Cadence: Unknown, Confidence: MinConfidence}
	}

	deltas := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		deltas = append(deltas, math.Round(dates[i].Sub(dates[i-1]).Hours()/24))
	}
	avg, std := meanStd(deltas)

	conf := math.Max(MinConfidence, math.Min(1, 1/(1+std)))
	for _, b := range bands {
		if math.Abs(avg-b.target) <= b.tolerance {
			period := b.period
			return Result{
				Cadence:    b.cadence,
				PeriodDays: &period,
				Confidence: money.Round2(math.Max(conf, b.floor)),
			}
		}
	}

	period := int(math.Round(avg))
	return Result{Cadence: Unknown, PeriodDays: &period, Confidence: money.Round2(conf)}
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(variance / float64(len(xs)))
}
