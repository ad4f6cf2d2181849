package models

// Response status values for the HTTP API envelope.
const (
	ResponseOK    = "ok"
	ResponseError = "error"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an ok envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: ResponseOK, Result: result}
}

// SuccessWithMessage wraps result in an ok envelope carrying a human message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: ResponseOK, Message: message, Result: result}
}

// Error builds an error envelope with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: ResponseError, Message: message}
}
