// Package indicator implements technical indicators over a price window.
//
// Every function is pure. When the window is too short for the requested
// period a neutral value is returned instead of an error: 0 for SMA, EMA
// and MACD, 50 for RSI, and bands collapsed onto the last price for
// Bollinger.
package indicator

import "math"

// Default parameters.
const (
	DefaultRSIPeriod       = 14
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultMACDSignal      = 9
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0

	RSINeutral = 50.0
)

// MACDResult is the MACD line, its signal line and their difference.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// Bands are Bollinger bands around a simple moving average.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// SMA returns the mean of the last period prices.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of prices with smoothing
// factor 2/(period+1), seeded with the SMA of the first period prices.
func EMA(prices []float64, period int) float64 {
	series := emaSeries(prices, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA at every index from period-1 onward.
func emaSeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	series := make([]float64, 0, len(prices)-period+1)
	ema := SMA(prices[:period], period)
	series = append(series, ema)
	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
		series = append(series, ema)
	}
	return series
}

// RSI returns the Wilder relative strength index over period. It needs
// period+1 prices (period changes). A window with no losses reads 100, a
// flat window reads 50.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return RSINeutral
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return RSINeutral
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns EMA(fast) - EMA(slow), the signal EMA of that line and the
// histogram. It needs slow+signal-1 prices.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 || len(prices) < slow+signal-1 {
		return MACDResult{}
	}

	fastSeries := emaSeries(prices, fast)
	slowSeries := emaSeries(prices, slow)
	// fastSeries starts at index fast-1, slowSeries at slow-1.
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	m := line[len(line)-1]
	s := EMA(line, signal)
	return MACDResult{MACD: m, Signal: s, Histogram: m - s}
}

// DefaultMACD is MACD with 12/26/9.
func DefaultMACD(prices []float64) MACDResult {
	return MACD(prices, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
}

// Bollinger returns SMA(period) ± k × population standard deviation over
// the last period prices.
func Bollinger(prices []float64, period int, k float64) Bands {
	if len(prices) == 0 {
		return Bands{}
	}
	if period <= 0 || len(prices) < period {
		last := prices[len(prices)-1]
		return Bands{Upper: last, Middle: last, Lower: last}
	}

	window := prices[len(prices)-period:]
	mean := SMA(window, period)
	std := StdDev(window)
	return Bands{Upper: mean + k*std, Middle: mean, Lower: mean - k*std}
}

// StdDev returns the population standard deviation, or 0 for fewer than
// two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}
