package results

// Aggregate counts records by outcome. An empty input yields zero counts and
// a zero pass percentage.
func Aggregate(records []Record) AggregateStats {
	counts := make(map[Outcome]int64, len(Outcomes))
	for i := range records {
		counts[records[i].Outcome]++
	}

	return FromCounts(counts)
}

// FromCounts builds stats from pre-computed per-outcome counts, as returned
// by a grouped storage query. Unknown keys still count towards the total.
func FromCounts(counts map[Outcome]int64) AggregateStats {
	var stats AggregateStats

	for outcome, n := range counts {
		stats.Total += n

		switch outcome {
		case OutcomePass:
			stats.Passed += n
		case OutcomeFail:
			stats.Failed += n
		case OutcomeBlocked:
			stats.Blocked += n
		case OutcomePending:
			stats.Pending += n
		}
	}

	stats.PassPercentage = passPercentage(stats.Passed, stats.Total)

	return stats
}

func passPercentage(passed, total int64) float64 {
	if total <= 0 {
		return 0
	}

	return float64(passed) * 100 / float64(total)
}
