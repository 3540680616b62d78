// Package analytics computes post-hoc metrics over engine outputs: delay
// economics, transit punctuality, emissions and calibration diagnostics.
// Nothing here feeds back into the pipeline's control flow.
package analytics

import (
	"math"
	"sort"
	"time"
)

// EconomicImpactCalculator translates aggregate delay into monetary loss.
type EconomicImpactCalculator struct {
	HourlyValueEUR float64
}

// ComputeLoss is a simple proportional conversion of hours lost to euros.
func (c EconomicImpactCalculator) ComputeLoss(hoursLost float64) float64 {
	return hoursLost * c.HourlyValueEUR
}

// Arrival pairs a tagged agent's scheduled and actual arrival.
type Arrival struct {
	AgentID   string
	Scheduled time.Time
	Actual    time.Time
}

// StudentStressAnalyzer scores lateness for tagged student agents: minutes
// late beyond the threshold, floored at zero.
type StudentStressAnalyzer struct {
	LatenessThresholdMin float64
}

func (a StudentStressAnalyzer) ComputeStressScores(arrivals []Arrival) map[string]float64 {
	scores := make(map[string]float64, len(arrivals))
	for _, arr := range arrivals {
		lateMin := arr.Actual.Sub(arr.Scheduled).Minutes()
		scores[arr.AgentID] = math.Max(0, lateMin-a.LatenessThresholdMin)
	}
	return scores
}

// Trip pairs scheduled and actual times for one transit trip.
type Trip struct {
	TripID             string
	ScheduledDeparture time.Time
	ActualDeparture    time.Time
	ScheduledArrival   time.Time
	ActualArrival      time.Time
}

// TransitSummary aggregates schedule deviation in minutes.
type TransitSummary struct {
	MeanDepartureDelay float64 `json:"mean_departure_delay"`
	MeanArrivalDelay   float64 `json:"mean_arrival_delay"`
	P95ArrivalDelay    float64 `json:"p95_arrival_delay"`
}

// SummarizeTransit measures deviation from the published schedule for bus
// agents. Empty input yields a zero summary.
func SummarizeTransit(trips []Trip) TransitSummary {
	if len(trips) == 0 {
		return TransitSummary{}
	}

	var depSum float64
	arrDelays := make([]float64, len(trips))
	for i, t := range trips {
		depSum += t.ActualDeparture.Sub(t.ScheduledDeparture).Minutes()
		arrDelays[i] = t.ActualArrival.Sub(t.ScheduledArrival).Minutes()
	}

	var arrSum float64
	for _, d := range arrDelays {
		arrSum += d
	}
	n := float64(len(trips))
	return TransitSummary{
		MeanDepartureDelay: depSum / n,
		MeanArrivalDelay:   arrSum / n,
		P95ArrivalDelay:    quantile(arrDelays, 0.95),
	}
}

// quantile uses linear interpolation between order statistics.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
