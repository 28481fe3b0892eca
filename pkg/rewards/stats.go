package rewards

import "time"

// AccountStats aggregates the filtered ledger view for the home screen.
type AccountStats struct {
	TotalTransactions int
	WeeklyEarned      Points
	WeeklyRedeemed    Points
	MonthlyEarned     Points
	MonthlyRedeemed   Points
}

// ComputeStats derives earn/redeem aggregates from a canonical ledger view.
// The windows are rolling: seven and thirty days back from now.
func ComputeStats(entries []LedgerEntry, now time.Time) AccountStats {
	weekCutoff := now.Add(-7 * 24 * time.Hour)
	monthCutoff := now.Add(-30 * 24 * time.Hour)

	stats := AccountStats{TotalTransactions: len(entries)}
	for _, entry := range entries {
		if entry.CreatedAt.Before(monthCutoff) {
			continue
		}
		inWeek := !entry.CreatedAt.Before(weekCutoff)
		switch entry.Kind {
		case EntryEarned:
			stats.MonthlyEarned += entry.Amount
			if inWeek {
				stats.WeeklyEarned += entry.Amount
			}
		case EntryRedeemed:
			stats.MonthlyRedeemed += entry.Amount
			if inWeek {
				stats.WeeklyRedeemed += entry.Amount
			}
		}
	}
	return stats
}
