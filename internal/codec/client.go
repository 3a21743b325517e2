// Package codec maps feature vectors onto the engine's two wire encodings:
// the newline-terminated text protocol and the datasentinel.v1 gRPC messages.
package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// #region client-struct

// InferenceClient wraps the Evaluate stub with vector-level encoding and decoding.
type InferenceClient struct {
	client InferenceServiceClient
}

// #endregion client-struct

// #region constructor

// NewInferenceClient creates a client that calls the engine over conn.
// The connection stays owned by the caller.
func NewInferenceClient(conn grpc.ClientConnInterface) *InferenceClient {
	return &InferenceClient{client: NewInferenceServiceClient(conn)}
}

// NewInferenceClientWithService creates an InferenceClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewInferenceClientWithService(svc InferenceServiceClient) *InferenceClient {
	return &InferenceClient{client: svc}
}

// #endregion constructor

// #region evaluate

// Evaluate sends values of any arity and decodes the engine's verdict.
// Engine-reported ERROR verdicts are results, not errors.
func (c *InferenceClient) Evaluate(ctx context.Context, values []float64, opts ...grpc.CallOption) (Result, error) {
	resp, err := c.client.Evaluate(ctx, EncodeRequest(values), opts...)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate rpc: %w", err)
	}
	return DecodeResponse(resp), nil
}

// #endregion evaluate
