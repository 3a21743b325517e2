// Package generator produces the synthetic feature vectors streamed to the engine.
package generator

import (
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
)

// #region generator

// Generator draws normal, anomaly and invalid vectors from the configured ranges.
// It is not safe for concurrent use; each producer loop owns one.
type Generator struct {
	normal      config.Range
	anomaly     config.Range
	anomalyRate float64
	rng         *rand.Rand
}

// New creates a Generator for cfg. src may be nil, in which case a randomly
// seeded source is used.
func New(cfg config.ProducerConfig, src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{
		normal:      cfg.Normal(),
		anomaly:     cfg.Anomaly(),
		anomalyRate: cfg.AnomalyRate,
		rng:         rand.New(src),
	}
}

// #endregion generator

// #region next

// IsInvalidCycle reports whether cycle is reserved for an invalid payload.
func IsInvalidCycle(cycle uint64) bool {
	return cycle%InvalidEvery == InvalidEvery-1
}

// Next selects and generates the payload for the given cycle index.
func (g *Generator) Next(cycle uint64) Payload {
	if IsInvalidCycle(cycle) {
		return Payload{Kind: KindInvalid, Values: g.Invalid()}
	}
	if g.rng.Float64() < g.anomalyRate {
		return Payload{Kind: KindAnomaly, Values: g.Anomaly()}
	}
	return Payload{Kind: KindNormal, Values: g.Normal()}
}

// #endregion next

// #region vectors

// Normal returns FeatureCount values inside the normal range, rounded to 3 decimals.
func (g *Generator) Normal() []float64 {
	out := make([]float64, FeatureCount)
	for i := range out {
		out[i] = clampToGrid(config.Round3(g.uniform(g.normal)), g.normal)
	}
	return out
}

// Anomaly returns FeatureCount values drawn from the anomaly range with at
// least one value outside the normal range after rounding.
func (g *Generator) Anomaly() []float64 {
	out := make([]float64, FeatureCount)
	inside := true
	for i := range out {
		out[i] = config.Round3(g.uniform(g.anomaly))
		if !g.normal.Contains(out[i]) {
			inside = false
		}
	}
	if inside {
		out[g.rng.IntN(FeatureCount)] = g.edge()
	}
	return out
}

// Invalid returns InvalidCount values, half the arity the engine expects.
func (g *Generator) Invalid() []float64 {
	out := make([]float64, InvalidCount)
	for i := range out {
		out[i] = config.Round3(g.uniform(InvalidRange))
	}
	return out
}

// #endregion vectors

// #region helpers

func (g *Generator) uniform(r config.Range) float64 {
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// edge picks an anomaly bound that lies outside the normal range once rounded.
// A fair coin decides when both bounds qualify.
func (g *Generator) edge() float64 {
	lo, hi := config.Round3(g.anomaly.Min), config.Round3(g.anomaly.Max)
	loOut, hiOut := !g.normal.Contains(lo), !g.normal.Contains(hi)
	switch {
	case loOut && hiOut:
		if g.rng.Float64() < 0.5 {
			return hi
		}
		return lo
	case hiOut:
		return hi
	default:
		return lo
	}
}

// clampToGrid pulls a rounded value back inside r when rounding pushed it
// across a bound that is not on the 3-decimal grid.
func clampToGrid(v float64, r config.Range) float64 {
	if v > r.Max {
		return math.Floor(r.Max*1000) / 1000
	}
	if v < r.Min {
		return math.Ceil(r.Min*1000) / 1000
	}
	return v
}

// #endregion helpers
