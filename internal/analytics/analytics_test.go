package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

func series(scores ...float64) []model.HistoryPoint {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	points := make([]model.HistoryPoint, len(scores))
	for i, s := range scores {
		points[i] = model.HistoryPoint{Date: base.AddDate(0, 0, i), Score: s}
	}
	return points
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestVolatility(t *testing.T) {
	if got := Volatility(nil); got != 0 {
		t.Errorf("empty series volatility = %v, want 0", got)
	}
	if got := Volatility(series(100, 100, 100)); got != 0 {
		t.Errorf("flat series volatility = %v, want 0", got)
	}
	// Population stddev of {98, 102} is 2, not the sample value ~2.83.
	if got := Volatility(series(98, 102)); !almost(got, 2) {
		t.Errorf("volatility = %v, want 2", got)
	}
}

func TestMomentumNeedsFourteenPoints(t *testing.T) {
	short := series(100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112)
	if got := Momentum(short); got != 0 {
		t.Errorf("13-point momentum = %v, want 0", got)
	}

	// Previous 7 all at 100, recent 7 all at 110.
	scores := make([]float64, 0, 14)
	for i := 0; i < 7; i++ {
		scores = append(scores, 100)
	}
	for i := 0; i < 7; i++ {
		scores = append(scores, 110)
	}
	if got := Momentum(series(scores...)); !almost(got, 10) {
		t.Errorf("momentum = %v, want 10", got)
	}
}

func TestTrendStrength(t *testing.T) {
	if got := TrendStrength(series(100, 105, 110)); got != 0 {
		t.Errorf("short series trend strength = %v, want 0", got)
	}

	// A perfect line of slope 2 has R² = 1, so strength = 2.
	if got := TrendStrength(series(100, 102, 104, 106, 108, 110, 112)); !almost(got, 2) {
		t.Errorf("trend strength = %v, want 2", got)
	}

	// Strength is magnitude, not direction.
	if got := TrendStrength(series(112, 110, 108, 106, 104, 102, 100)); !almost(got, 2) {
		t.Errorf("falling trend strength = %v, want 2", got)
	}
}

func TestPredictDegenerate(t *testing.T) {
	got := Predict(nil)
	if got.Score != model.BaselineScore || got.Confidence != 0 || got.Trend != TrendStable {
		t.Errorf("empty prediction = %+v", got)
	}

	got = Predict(series(100, 123))
	if got.Score != 123 || got.Confidence != 0 || got.Trend != TrendStable {
		t.Errorf("two-point prediction = %+v, want latest score with zero confidence", got)
	}
}

func TestPredictLinearSeries(t *testing.T) {
	// Perfect line 100, 102, ... 112: slope 2, zero residual.
	got := Predict(series(100, 102, 104, 106, 108, 110, 112))
	if !almost(got.Score, 126) {
		t.Errorf("predicted score = %v, want 126", got.Score)
	}
	if !almost(got.Confidence, 100) {
		t.Errorf("confidence = %v, want 100 for perfect fit", got.Confidence)
	}
	if got.Trend != TrendRising {
		t.Errorf("trend = %q, want %q", got.Trend, TrendRising)
	}
}

func TestPredictClampsToScoreBand(t *testing.T) {
	got := Predict(series(150, 160, 170, 180, 190, 200))
	if got.Score != model.MaxScore {
		t.Errorf("predicted score = %v, want clamped to %v", got.Score, model.MaxScore)
	}

	got = Predict(series(50, 40, 30, 20, 10, 0))
	if got.Score != model.MinScore {
		t.Errorf("predicted score = %v, want clamped to %v", got.Score, model.MinScore)
	}
	if got.Trend != TrendFalling {
		t.Errorf("trend = %q, want %q", got.Trend, TrendFalling)
	}
}

func TestPredictStableBand(t *testing.T) {
	// Slope within (-0.5, 0.5) stays stable.
	got := Predict(series(100, 100.2, 100.4, 100.6))
	if got.Trend != TrendStable {
		t.Errorf("trend = %q, want %q for slope 0.2", got.Trend, TrendStable)
	}
}

func TestSMA(t *testing.T) {
	if got := SMA(nil, 3); got != model.BaselineScore {
		t.Errorf("empty SMA = %v, want baseline", got)
	}
	// Too few points: latest score, not a partial average.
	if got := SMA(series(90, 120), 3); got != 120 {
		t.Errorf("short SMA = %v, want latest score 120", got)
	}
	if got := SMA(series(100, 110, 120, 130), 3); !almost(got, 120) {
		t.Errorf("SMA3 = %v, want 120", got)
	}
}

func TestEMA(t *testing.T) {
	if got := EMA(nil, 7); got != model.BaselineScore {
		t.Errorf("empty EMA = %v, want baseline", got)
	}
	if got := EMA(series(100), 7); got != 100 {
		t.Errorf("single-point EMA = %v, want the seed score", got)
	}

	// k = 2/8 = 0.25: after 100 then 108 the EMA is 102.
	if got := EMA(series(100, 108), 7); !almost(got, 102) {
		t.Errorf("EMA = %v, want 102", got)
	}
}

func TestSentiments(t *testing.T) {
	if got := Sentiments(nil); got != (SentimentBreakdown{}) {
		t.Errorf("empty breakdown = %+v, want zeros", got)
	}

	points := series(100, 101, 102, 103)
	points[0].Sentiment = model.SentimentPositive
	points[1].Sentiment = model.SentimentPositive
	points[2].Sentiment = model.SentimentNegative
	// points[3] untagged, counts as neutral

	got := Sentiments(points)
	if !almost(got.Positive, 50) || !almost(got.Negative, 25) || !almost(got.Neutral, 25) {
		t.Errorf("breakdown = %+v, want 50/25/25", got)
	}
}
