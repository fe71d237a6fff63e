package errors

import "net/http"

// HTTPStatus maps an error code to the status the API boundary reports.
// BackendUnavailable only reaches the boundary when a component is configured
// fail-closed; fail-open paths never surface it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeTemplateNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
