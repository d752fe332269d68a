package ensemble

import (
	"math"
	"slices"
)

// Reduction is the coordinator's merge of every replica record.
type Reduction struct {
	Replicas     int     `json:"replicas"`
	TotalTrades  int64   `json:"total_trades"`
	TotalVolume  float64 `json:"total_volume"`
	MeanTrades   float64 `json:"mean_trades"`
	StdTrades    float64 `json:"std_trades"`
	MeanVolume   float64 `json:"mean_volume"`
	StdVolume    float64 `json:"std_volume"`
	BestReplica  int64   `json:"best_replica"`
	BestVolume   float64 `json:"best_volume"`
	WorstReplica int64   `json:"worst_replica"`
	WorstVolume  float64 `json:"worst_volume"`
}

// Reduce sums, averages and ranks the records. Records are processed in
// index order so the result does not depend on arrival order; ties for
// best or worst volume go to the lowest index. Standard deviations are
// population deviations.
func Reduce(records []Record) Reduction {
	if len(records) == 0 {
		return Reduction{BestReplica: -1, WorstReplica: -1}
	}
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b Record) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})

	red := Reduction{
		Replicas:     len(sorted),
		BestReplica:  sorted[0].Index,
		BestVolume:   sorted[0].Stats.TotalVolume,
		WorstReplica: sorted[0].Index,
		WorstVolume:  sorted[0].Stats.TotalVolume,
	}
	for _, r := range sorted {
		red.TotalTrades += r.Stats.TotalTrades
		red.TotalVolume += r.Stats.TotalVolume
		if r.Stats.TotalVolume > red.BestVolume {
			red.BestReplica, red.BestVolume = r.Index, r.Stats.TotalVolume
		}
		if r.Stats.TotalVolume < red.WorstVolume {
			red.WorstReplica, red.WorstVolume = r.Index, r.Stats.TotalVolume
		}
	}

	n := float64(len(sorted))
	red.MeanTrades = float64(red.TotalTrades) / n
	red.MeanVolume = red.TotalVolume / n

	var sqTrades, sqVolume float64
	for _, r := range sorted {
		dt := float64(r.Stats.TotalTrades) - red.MeanTrades
		dv := r.Stats.TotalVolume - red.MeanVolume
		sqTrades += dt * dt
		sqVolume += dv * dv
	}
	red.StdTrades = math.Sqrt(sqTrades / n)
	red.StdVolume = math.Sqrt(sqVolume / n)
	return red
}
