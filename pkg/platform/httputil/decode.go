package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "dataguard/pkg/domain-errors"
)

// Validatable is implemented by request DTOs that check themselves.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request DTOs that canonicalize their fields.
type Normalizable interface {
	Normalize()
}

// DecodeAndPrepare decodes the body into T, then normalizes and validates it.
// On failure it writes the error response and returns false.
//
//	req, ok := httputil.DecodeAndPrepare[dto.SubmitRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//		return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request",
				"error", err,
				"request_id", requestID,
			)
			if dErrors.CodeOf(err) == dErrors.CodeInternal {
				err = dErrors.New(dErrors.CodeValidation, err.Error())
			}
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
