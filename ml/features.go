package ml

import (
	"math"

	"injurywatch/pipeline"
)

// FeatureSummary holds the engineered feature vector the model service
// derives from a weekly batch: the last day's 8 base features plus a
// 7-day rolling mean/max/std for each of them. Computed locally for
// the dashboard and the analysis history, never sent on the wire.
type FeatureSummary struct {
	Values map[string]float64 `json:"values"`
	Order  []string           `json:"order"`
}

// FeatureOrder returns the 32 engineered feature names in their fixed
// order: base features, then roll7_mean_*, roll7_max_*, roll7_std_*.
func FeatureOrder() []string {
	base := pipeline.FeatureColumns
	order := make([]string, 0, 4*len(base))
	order = append(order, base...)
	for _, f := range base {
		order = append(order, "roll7_mean_"+f)
	}
	for _, f := range base {
		order = append(order, "roll7_max_"+f)
	}
	for _, f := range base {
		order = append(order, "roll7_std_"+f)
	}
	return order
}

// ComputeFeatureSummary engineers the rolling features over a batch.
// The batch is already chronological, so the last record is the most
// recent session. Std is the population deviation (divide by n).
func ComputeFeatureSummary(batch *pipeline.WeeklyBatch) FeatureSummary {
	base := pipeline.FeatureColumns
	values := make(map[string]float64, 4*len(base))

	current := batch.Records[len(batch.Records)-1].Features()
	for i, f := range base {
		values[f] = current[i]
	}

	for i, f := range base {
		series := make([]float64, len(batch.Records))
		for j, rec := range batch.Records {
			series[j] = rec.Features()[i]
		}
		mean, stdDev := meanStd(series)
		values["roll7_mean_"+f] = mean
		values["roll7_max_"+f] = maxOf(series)
		values["roll7_std_"+f] = stdDev
	}

	return FeatureSummary{Values: values, Order: FeatureOrder()}
}

func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
