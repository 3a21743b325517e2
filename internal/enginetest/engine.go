// Package enginetest provides in-process stand-ins for the inference engine:
// a line-protocol TCP server and a gRPC server on an in-memory listener.
// Both apply the engine's arity check and a fixed-threshold verdict.
package enginetest

import (
	"math"
	"strconv"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
)

// ExpectedInputSize is the arity the fake engine accepts.
const ExpectedInputSize = 8

// Evaluate mimics the engine's detector: wrong arity is an ERROR verdict,
// otherwise the mean squared value is the score and anything beyond the unit
// interval is an ANOMALY.
func Evaluate(values []float64) *codec.EvaluateResponse {
	if len(values) != ExpectedInputSize {
		return &codec.EvaluateResponse{
			Status:  codec.StatusError,
			Message: invalidSizeMessage(len(values)),
		}
	}
	var sum float64
	anomaly := false
	for _, v := range values {
		sum += v * v
		if math.Abs(v) > 1 {
			anomaly = true
		}
	}
	resp := &codec.EvaluateResponse{Status: codec.StatusOK, MSE: sum / float64(len(values)), Message: "OK"}
	if anomaly {
		resp.Status = codec.StatusAnomaly
		resp.Message = "ANOMALY"
	}
	return resp
}

func invalidSizeMessage(got int) string {
	return "Invalid input size. Expected " + strconv.Itoa(ExpectedInputSize) + ", got " + strconv.Itoa(got)
}
