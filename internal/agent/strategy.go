package agent

import (
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/indicator"
)

// MACD parameters used by traders. The window holds 20 samples, too few
// for 12/26/9.
const (
	MACDFast   = 6
	MACDSlow   = 13
	MACDSignal = 5

	macdMinSamples = MACDSlow + MACDSignal - 1
)

type signal int

const (
	signalNone signal = iota
	signalBuy
	signalSell
)

func baseQuantity(s domain.Strategy) int64 {
	switch s {
	case domain.StrategyRiskAverse:
		return 5
	case domain.StrategyHighRisk:
		return 20
	}
	return 10
}

func (t *Trader) refreshIndicators() {
	t.ind = Indicators{
		RSI:       indicator.RSI(t.window, indicator.DefaultRSIPeriod),
		MACD:      indicator.MACD(t.window, MACDFast, MACDSlow, MACDSignal),
		Bollinger: indicator.Bollinger(t.window, indicator.DefaultBollingerPeriod, indicator.DefaultBollingerK),
		MACDReady: len(t.window) >= macdMinSamples,
	}
}

// signal evaluates the trader's strategy over its window. prev is the MACD
// computed on the previous decision.
func (t *Trader) signal(price float64, prev indicator.MACDResult, prevReady bool) signal {
	switch t.strategy {
	case domain.StrategyMomentum:
		return momentum(t.window)
	case domain.StrategyMeanReversion:
		return meanReversion(t.window, price, 0.05)
	case domain.StrategyRiskAverse:
		return meanReversion(t.window, price, 0.10)
	case domain.StrategyRandom:
		switch t.rng.IntN(11) {
		case 1:
			return signalBuy
		case 2:
			return signalSell
		}
		return signalNone
	case domain.StrategyHighRisk:
		return highRisk(t.window, price)
	case domain.StrategyRSI:
		return rsiSignal(t.ind.RSI)
	case domain.StrategyMACD:
		if !prevReady || !t.ind.MACDReady {
			return signalNone
		}
		return macdCrossover(prev, t.ind.MACD)
	case domain.StrategyBollinger:
		return bollingerSignal(t.ind.Bollinger, price)
	case domain.StrategyMultiIndicator:
		return t.multiIndicator(price)
	}
	return signalNone
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// momentum compares the newer half of the window to the older half.
func momentum(window []float64) signal {
	half := len(window) / 2
	older, recent := mean(window[:half]), mean(window[half:])
	switch {
	case recent > older*1.02:
		return signalBuy
	case recent < older*0.98:
		return signalSell
	}
	return signalNone
}

// meanReversion buys below the window mean by band and sells above it.
func meanReversion(window []float64, price, band float64) signal {
	m := mean(window)
	switch {
	case price < m*(1-band):
		return signalBuy
	case price > m*(1+band):
		return signalSell
	}
	return signalNone
}

// highRisk follows the last three samples with a 1% band.
func highRisk(window []float64, price float64) signal {
	recent := mean(window[max(len(window)-3, 0):])
	switch {
	case price > recent*1.01:
		return signalBuy
	case price < recent*0.99:
		return signalSell
	}
	return signalNone
}

func rsiSignal(rsi float64) signal {
	switch {
	case rsi < 30:
		return signalBuy
	case rsi > 70:
		return signalSell
	}
	return signalNone
}

func macdCrossover(prev, cur indicator.MACDResult) signal {
	switch {
	case prev.MACD <= prev.Signal && cur.MACD > cur.Signal:
		return signalBuy
	case prev.MACD >= prev.Signal && cur.MACD < cur.Signal:
		return signalSell
	}
	return signalNone
}

func bollingerSignal(b indicator.Bands, price float64) signal {
	switch {
	case price < b.Lower:
		return signalBuy
	case price > b.Upper:
		return signalSell
	}
	return signalNone
}

// multiIndicator needs at least two of RSI, MACD histogram and Bollinger
// to agree.
func (t *Trader) multiIndicator(price float64) signal {
	votes := map[signal]int{}
	votes[rsiSignal(t.ind.RSI)]++
	votes[bollingerSignal(t.ind.Bollinger, price)]++
	if t.ind.MACDReady {
		switch {
		case t.ind.MACD.Histogram > 0:
			votes[signalBuy]++
		case t.ind.MACD.Histogram < 0:
			votes[signalSell]++
		}
	}
	switch {
	case votes[signalBuy] >= 2:
		return signalBuy
	case votes[signalSell] >= 2:
		return signalSell
	}
	return signalNone
}
