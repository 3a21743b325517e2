package codec

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of datasentinel.v1 messages (proto/datasentinel/v1/inference.proto).
const (
	fieldRequestValues = 1

	fieldResponseStatus  = 1
	fieldResponseMSE     = 2
	fieldResponseMessage = 3
)

// #region request

// EvaluateRequest is datasentinel.v1.EvaluateRequest.
type EvaluateRequest struct {
	Values []float64
}

// MarshalWire encodes the request in protobuf binary form. Values are packed.
func (m *EvaluateRequest) MarshalWire() ([]byte, error) {
	if len(m.Values) == 0 {
		return []byte{}, nil
	}
	b := make([]byte, 0, 2+protowire.SizeVarint(uint64(8*len(m.Values)))+8*len(m.Values))
	b = protowire.AppendTag(b, fieldRequestValues, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(m.Values)))
	for _, v := range m.Values {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b, nil
}

// UnmarshalWire decodes b, accepting both packed and unpacked value encodings.
func (m *EvaluateRequest) UnmarshalWire(b []byte) error {
	m.Values = nil
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("evaluate request: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldRequestValues && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("evaluate request values: %w", protowire.ParseError(n))
			}
			b = b[n:]
			if len(packed)%8 != 0 {
				return errors.New("evaluate request values: packed length not a multiple of 8")
			}
			for len(packed) > 0 {
				v, k := protowire.ConsumeFixed64(packed)
				if k < 0 {
					return fmt.Errorf("evaluate request values: %w", protowire.ParseError(k))
				}
				m.Values = append(m.Values, math.Float64frombits(v))
				packed = packed[k:]
			}
		case num == fieldRequestValues && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("evaluate request values: %w", protowire.ParseError(n))
			}
			b = b[n:]
			m.Values = append(m.Values, math.Float64frombits(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("evaluate request: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// #endregion request

// #region response

// EvaluateResponse is datasentinel.v1.EvaluateResponse.
type EvaluateResponse struct {
	Status  Status
	MSE     float64
	Message string
}

// MarshalWire encodes the response, omitting proto3 default values.
func (m *EvaluateResponse) MarshalWire() ([]byte, error) {
	var b []byte
	if m.Status != 0 {
		b = protowire.AppendTag(b, fieldResponseStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.Status)))
	}
	if m.MSE != 0 {
		b = protowire.AppendTag(b, fieldResponseMSE, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.MSE))
	}
	if m.Message != "" {
		b = protowire.AppendTag(b, fieldResponseMessage, protowire.BytesType)
		b = protowire.AppendString(b, m.Message)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// UnmarshalWire decodes b. Unknown fields are skipped.
func (m *EvaluateResponse) UnmarshalWire(b []byte) error {
	*m = EvaluateResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("evaluate response: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldResponseStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("evaluate response status: %w", protowire.ParseError(n))
			}
			b = b[n:]
			m.Status = Status(int32(v))
		case num == fieldResponseMSE && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("evaluate response mse: %w", protowire.ParseError(n))
			}
			b = b[n:]
			m.MSE = math.Float64frombits(v)
		case num == fieldResponseMessage && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("evaluate response message: %w", protowire.ParseError(n))
			}
			b = b[n:]
			m.Message = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("evaluate response: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// #endregion response

// #region mapping

// EncodeRequest wraps values of any arity into a request message.
func EncodeRequest(values []float64) *EvaluateRequest {
	return &EvaluateRequest{Values: append([]float64(nil), values...)}
}

// DecodeResponse maps a response message onto a Result. An ERROR status
// carries no valid score.
func DecodeResponse(resp *EvaluateResponse) Result {
	if resp == nil {
		return Result{Status: StatusUnknown}
	}
	res := Result{Status: resp.Status, Message: resp.Message}
	switch resp.Status {
	case StatusOK, StatusAnomaly:
		res.Score = resp.MSE
		res.HasScore = true
	case StatusError:
	default:
		res.Status = StatusUnknown
	}
	return res
}

// #endregion mapping
