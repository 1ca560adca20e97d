package service

import (
	"net/http"

	"event-relay/internal/model"
)

const (
	msgForwarded     = "Request forwarded successfully"
	msgForwardFailed = "Failed to forward request"
)

// Compose builds the reply to the original caller. A failed forward yields
// 500 with the error detail; a successful one yields 200 with the target's
// body and, when a callback was attempted, its status.
func Compose(d *model.Directive, fwd model.ForwardOutcome, cb model.CallbackOutcome) *model.Reply {
	if !fwd.Succeeded {
		return &model.Reply{
			StatusCode: http.StatusInternalServerError,
			Body: model.ErrorResponse{
				Error:   msgForwardFailed,
				UseID:   d.CallerID,
				Details: fwd.ErrorDetail,
			},
		}
	}

	resp := model.ForwardEventResponse{
		Message:  msgForwarded,
		UseID:    d.CallerID,
		Response: fwd.ResponseBody,
	}
	if cb.Attempted {
		status := &model.CallbackStatus{Posted: cb.Succeeded}
		if cb.Succeeded {
			status.Status = cb.StatusCode
			status.Data = cb.ResponseBody
		} else {
			status.Error = cb.ErrorDetail
		}
		resp.Callback = status
	}

	return &model.Reply{StatusCode: http.StatusOK, Body: resp}
}
