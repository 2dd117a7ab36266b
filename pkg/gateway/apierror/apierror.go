// Package apierror maps internal errors to the canonical error envelope
// and HTTP status returned to external callers.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/core/settings"
	"github.com/owui-labs/voicegate/pkg/room"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError maps err to a canonical error plus HTTP status.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrSubstrate,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, StatusFromType(coreErr.Type)
	}

	// Settings rejected at the boundary.
	var settingsErr *settings.InvalidSettingsError
	if errors.As(err, &settingsErr) && settingsErr != nil {
		return &core.Error{
			Type:      core.ErrValidation,
			Message:   settingsErr.Message,
			Param:     settingsErr.Param,
			RequestID: requestID,
		}, http.StatusBadRequest
	}

	// Substrate failures surface as a generic failure; the detail stays in
	// the logs, never in the response.
	var substrateErr *room.SubstrateError
	if errors.As(err, &substrateErr) && substrateErr != nil {
		return &core.Error{
			Type:      core.ErrSubstrate,
			Message:   "room service request failed",
			RequestID: requestID,
		}, http.StatusInternalServerError
	}

	// Unknown errors: do not leak details.
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// StatusFromType maps the error taxonomy to HTTP statuses.
func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrConflict:
		return http.StatusConflict
	case core.ErrSubstrate:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
