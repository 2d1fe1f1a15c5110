// Package analytics derives volatility, momentum, trend and prediction
// metrics from an entity's history. Every function is pure and
// stateless, and treats an empty or too-short series as its stated
// degenerate default - callers poll these continuously and cannot
// tolerate panics from sparse data.
package analytics

import (
	"math"

	"github.com/nvaughn/polipulse/internal/model"
)

// Analysis windows.
const (
	momentumWindow   = 7  // points per side of the momentum split
	regressionWindow = 14 // most recent points used for trend/prediction
	trendMinPoints   = 7
	predictionSteps  = 7
	emaPeriod        = 7
)

// Slope thresholds for the trend label.
const (
	risingSlope  = 0.5
	fallingSlope = -0.5
)

// Trend labels.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Volatility returns the population standard deviation of scores.
// Empty series: 0.
func Volatility(points []model.HistoryPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	mean := 0.0
	for _, p := range points {
		mean += p.Score
	}
	mean /= float64(len(points))

	variance := 0.0
	for _, p := range points {
		d := p.Score - mean
		variance += d * d
	}
	variance /= float64(len(points))

	return math.Sqrt(variance)
}

// Momentum is the difference between the mean of the most recent 7
// points and the mean of the preceding 7. Fewer than 14 points: 0.
func Momentum(points []model.HistoryPoint) float64 {
	if len(points) < 2*momentumWindow {
		return 0
	}
	recent := points[len(points)-momentumWindow:]
	previous := points[len(points)-2*momentumWindow : len(points)-momentumWindow]
	return meanScore(recent) - meanScore(previous)
}

// TrendStrength is |slope x R²| over the most recent points. Fewer
// than 7 points: 0.
func TrendStrength(points []model.HistoryPoint) float64 {
	if len(points) < trendMinPoints {
		return 0
	}
	window := tail(points, regressionWindow)
	slope, _, r2, _ := linreg(window)
	return math.Abs(slope * r2)
}

// Prediction is a linear-regression extrapolation of the score.
type Prediction struct {
	Score      float64 // extrapolated 7 steps forward, clamped to the score band
	Confidence float64 // 100 - RMS residual, clamped to [0, 100]
	Trend      string  // rising / falling / stable
}

// Predict extrapolates the most recent window 7 steps forward. A
// series shorter than 3 points yields the latest score (or baseline)
// with zero confidence and a stable label.
func Predict(points []model.HistoryPoint) Prediction {
	if len(points) < 3 {
		score := model.BaselineScore
		if len(points) > 0 {
			score = points[len(points)-1].Score
		}
		return Prediction{Score: score, Confidence: 0, Trend: TrendStable}
	}

	window := tail(points, regressionWindow)
	slope, intercept, _, rms := linreg(window)

	predicted := intercept + slope*float64(len(window)-1+predictionSteps)
	predicted = model.ClampScore(predicted)

	confidence := 100 - rms
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	trend := TrendStable
	switch {
	case slope > risingSlope:
		trend = TrendRising
	case slope < fallingSlope:
		trend = TrendFalling
	}

	return Prediction{Score: predicted, Confidence: confidence, Trend: trend}
}

// MovingAverages bundles the fixed-window averages the dashboard plots.
type MovingAverages struct {
	SMA3  float64
	SMA7  float64
	SMA14 float64
	EMA   float64
}

// Averages computes the simple moving averages at the three fixed
// windows plus the exponential moving average.
func Averages(points []model.HistoryPoint) MovingAverages {
	return MovingAverages{
		SMA3:  SMA(points, 3),
		SMA7:  SMA(points, 7),
		SMA14: SMA(points, 14),
		EMA:   EMA(points, emaPeriod),
	}
}

// SMA is the simple moving average over the last window points,
// falling back to the latest score when history is insufficient.
func SMA(points []model.HistoryPoint, window int) float64 {
	if len(points) == 0 {
		return model.BaselineScore
	}
	if len(points) < window {
		return points[len(points)-1].Score
	}
	return meanScore(points[len(points)-window:])
}

// EMA is the exponential moving average with smoothing 2/(period+1),
// seeded from the first score.
func EMA(points []model.HistoryPoint, period int) float64 {
	if len(points) == 0 {
		return model.BaselineScore
	}
	k := 2.0 / (float64(period) + 1)
	ema := points[0].Score
	for _, p := range points[1:] {
		ema = p.Score*k + ema*(1-k)
	}
	return ema
}

// SentimentBreakdown is the percentage share of each sentiment tag.
type SentimentBreakdown struct {
	Positive float64
	Negative float64
	Neutral  float64
}

// Sentiments computes the percentage breakdown of tagged points.
// Empty series: all zeros.
func Sentiments(points []model.HistoryPoint) SentimentBreakdown {
	if len(points) == 0 {
		return SentimentBreakdown{}
	}
	var pos, neg, neu int
	for _, p := range points {
		switch p.Sentiment {
		case model.SentimentPositive:
			pos++
		case model.SentimentNegative:
			neg++
		default:
			neu++
		}
	}
	total := float64(len(points))
	return SentimentBreakdown{
		Positive: 100 * float64(pos) / total,
		Negative: 100 * float64(neg) / total,
		Neutral:  100 * float64(neu) / total,
	}
}

// --- helpers ---

func meanScore(points []model.HistoryPoint) float64 {
	sum := 0.0
	for _, p := range points {
		sum += p.Score
	}
	return sum / float64(len(points))
}

func tail(points []model.HistoryPoint, n int) []model.HistoryPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

// linreg fits y = intercept + slope*x over x = 0..n-1 and returns the
// fit quality (R²) and root-mean-square residual.
func linreg(points []model.HistoryPoint) (slope, intercept, r2, rms float64) {
	n := float64(len(points))
	if n < 2 {
		if n == 1 {
			return 0, points[0].Score, 0, 0
		}
		return 0, 0, 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Score
		sumXY += x * p.Score
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, p := range points {
		fit := intercept + slope*float64(i)
		ssRes += (p.Score - fit) * (p.Score - fit)
		ssTot += (p.Score - meanY) * (p.Score - meanY)
	}

	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	rms = math.Sqrt(ssRes / n)
	return slope, intercept, r2, rms
}
