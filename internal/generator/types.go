package generator

import "github.com/danielpatrickdp/datasentinel/producer/internal/config"

// #region constants

const (
	// FeatureCount is the arity the inference model expects.
	FeatureCount = 8
	// InvalidCount is the arity of deliberately malformed vectors.
	InvalidCount = FeatureCount / 2
	// InvalidEvery is the cadence of invalid payloads: cycle%InvalidEvery == InvalidEvery-1.
	InvalidEvery = 10
)

// InvalidRange is the fixed range invalid vectors are sampled from.
var InvalidRange = config.Range{Min: 0, Max: 100}

// #endregion constants

// #region kind

// Kind classifies a generated payload.
type Kind int

const (
	KindNormal Kind = iota
	KindAnomaly
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindAnomaly:
		return "anomaly"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// #endregion kind

// #region payload

// Payload is one generated vector together with its category.
type Payload struct {
	Kind   Kind
	Values []float64
}

// #endregion payload
