package hazard

type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// rank orders levels for comparisons; unknown levels rank below low.
func (l RiskLevel) rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether l is the same or a more severe level than
// other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

// Classify maps a composite score in [0,1] to a risk level.
func Classify(score float64) RiskLevel {
	switch {
	case score < 0.25:
		return LevelLow
	case score < 0.5:
		return LevelMedium
	case score < 0.75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// MaxLevel returns the more severe of two levels.
func MaxLevel(a, b RiskLevel) RiskLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}
