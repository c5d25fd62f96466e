package response

import (
	"net/http"

	"refledger/entity"
	"refledger/lib/clock"
)

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

// StatusCode maps the service error taxonomy onto HTTP status codes.
// All handlers go through this so a kind renders the same everywhere.
func StatusCode(err error) int {
	switch entity.KindOf(err) {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindConflict:
		return http.StatusConflict
	case entity.KindDeadlineExceeded:
		return http.StatusForbidden
	case entity.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case entity.KindResourceExhausted:
		return http.StatusServiceUnavailable
	case entity.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
