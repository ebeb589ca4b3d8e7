package errors

// Error codes for standardized error responses
const (
	// Authentication
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInvalidToken = "invalid_token"

	// Validation
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"

	// Sessions
	ErrCodeSessionNotFound       = "session_not_found"
	ErrCodeInvalidJoinCode       = "invalid_join_code"
	ErrCodeSessionCreationFailed = "session_creation_failed"
	ErrCodeNotYourTurn           = "not_your_turn"
	ErrCodeAlreadyAnswered       = "already_answered"
	ErrCodeSubmitFailed          = "submit_failed"
	ErrCodeSessionCorrupted      = "session_corrupted"

	// WebSocket
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
