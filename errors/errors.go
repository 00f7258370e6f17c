package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// NodeConfig creates a new AppError for invalid node metadata.
func NodeConfig(nodeType, reason string) *AppError {
	return &AppError{
		Code: ErrCodeNodeConfig, Message: fmt.Sprintf("Invalid %s node configuration: %s", nodeType, reason),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"node_type": nodeType},
	}
}

// UnknownField creates a new AppError for metadata keys outside the closed contract.
func UnknownField(nodeType string, fields []string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownField, Message: fmt.Sprintf("Unknown fields in %s node metadata", nodeType),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"node_type": nodeType, "fields": fields},
	}
}

// UnknownNodeType creates a new AppError for a node type with no registered service.
// This is a configuration fault in the process, never a user error.
func UnknownNodeType(nodeType string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownNodeType, Message: fmt.Sprintf("No service registered for node type %q", nodeType),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"node_type": nodeType},
	}
}

// ExpressionSyntax creates a new AppError for an expression that does not parse.
func ExpressionSyntax(expression, fieldPath string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExpressionSyntax, Message: "Expression does not parse.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"expression": expression, "field": fieldPath},
		Cause:   cause,
	}
}

// ExpressionEval creates a new AppError for an expression that failed at run time.
func ExpressionEval(expression string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExpressionEval, Message: "Expression evaluation failed.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"expression": expression},
		Cause:   cause,
	}
}

// NodeExecution creates a new AppError for a node whose execute step failed.
func NodeExecution(nodeID int64, nodeType string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNodeExecution, Message: fmt.Sprintf("Node %d (%s) failed during execution.", nodeID, nodeType),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"node_id": nodeID, "node_type": nodeType},
		Cause:   cause,
	}
}

// DagInvalid creates a new AppError for a graph that failed structural validation.
func DagInvalid(errorCount int) *AppError {
	return &AppError{
		Code: ErrCodeDagInvalid, Message: "Workflow graph failed validation.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"error_count": errorCount},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for a failed validation pass.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}
