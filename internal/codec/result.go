package codec

// #region status

// Status is the engine's verdict for one evaluated vector.
type Status int32

// Values match the EvaluateResponse.Status enum on the wire.
const (
	StatusOK      Status = 0
	StatusAnomaly Status = 1
	StatusError   Status = 2
	// StatusUnknown is never sent by the engine; it marks an unrecognised line reply.
	StatusUnknown Status = -1
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusAnomaly:
		return "ANOMALY"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// #endregion status

// #region result

// Result is a decoded engine response.
type Result struct {
	Status Status
	// Score is the reconstruction error. Only meaningful when HasScore is true.
	Score    float64
	HasScore bool
	Message  string
}

// ScoreValid reports whether Score may be shown as a reconstruction error.
func (r Result) ScoreValid() bool {
	return r.HasScore && r.Status != StatusError
}

// #endregion result
