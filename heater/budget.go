package heater

// Budget is the per-tick electrical allowance derived from line
// voltage: how many elements may be on at once, and how many entries of
// the ascending delta sort are skipped before selection begins.  The
// two are coupled: RankingSkip is always Count minus MaxOn.
type Budget struct {
	MaxOn       int
	RankingSkip int
}

// Line-voltage thresholds for the budget table, volts RMS.
const (
	lowLineVolts = 201.0
	midLineVolts = 221.0
)

// BudgetForVoltage maps measured line voltage to the allowance.  A
// reading of zero means the meter has not answered yet; that gets the
// most conservative row.
func BudgetForVoltage(volts float64) Budget {
	switch {
	case volts <= 0:
		return Budget{MaxOn: 8, RankingSkip: 4}
	case volts <= lowLineVolts:
		return Budget{MaxOn: 10, RankingSkip: 2}
	case volts <= midLineVolts:
		return Budget{MaxOn: 9, RankingSkip: 3}
	default:
		return Budget{MaxOn: 8, RankingSkip: 4}
	}
}
