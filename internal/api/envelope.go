package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is bumped when the envelope shape changes.
const EnvelopeVersion = 1

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps handler output in an Envelope.
// Errors keep their code and details at the top level.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case Envelope, *Envelope:
		return v, nil
	case *APIError:
		return Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   body.Message,
			Code:    body.Code,
			Details: body.Details,
		}, nil
	case *huma.ErrorModel:
		return Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   body.Detail,
			Code:    statusToCode(body.Status),
		}, nil
	}

	return Envelope{
		Version: EnvelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
