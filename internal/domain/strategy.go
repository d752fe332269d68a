package domain

// Strategy tags the decision rule a trader follows. The set is closed.
type Strategy int

const (
	StrategyMomentum Strategy = iota
	StrategyMeanReversion
	StrategyRandom
	StrategyRiskAverse
	StrategyHighRisk
	StrategyRSI
	StrategyMACD
	StrategyBollinger
	StrategyMultiIndicator
	StrategyHuman
)

// AutonomousStrategies lists every strategy that decides on its own, in
// assignment order.
var AutonomousStrategies = []Strategy{
	StrategyMomentum,
	StrategyMeanReversion,
	StrategyRandom,
	StrategyRiskAverse,
	StrategyHighRisk,
	StrategyRSI,
	StrategyMACD,
	StrategyBollinger,
	StrategyMultiIndicator,
}

// String returns the display name.
func (s Strategy) String() string {
	switch s {
	case StrategyMomentum:
		return "Momentum"
	case StrategyMeanReversion:
		return "Mean Reversion"
	case StrategyRandom:
		return "Random"
	case StrategyRiskAverse:
		return "Risk Averse"
	case StrategyHighRisk:
		return "High Risk"
	case StrategyRSI:
		return "RSI"
	case StrategyMACD:
		return "MACD"
	case StrategyBollinger:
		return "Bollinger Bands"
	case StrategyMultiIndicator:
		return "Multi-Indicator"
	case StrategyHuman:
		return "Human"
	}
	return "Unknown"
}

// StrategyFor returns the strategy assigned to the trader at index i.
func StrategyFor(i int) Strategy {
	return AutonomousStrategies[i%len(AutonomousStrategies)]
}
