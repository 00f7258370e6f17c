package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Graph and configuration errors
const (
	// ErrCodeDagInvalid indicates the node/edge set failed structural validation.
	ErrCodeDagInvalid ErrorCode = "DAG_INVALID"
	// ErrCodeNodeConfig indicates bad node metadata or configuration.
	ErrCodeNodeConfig ErrorCode = "NODE_CONFIG_INVALID"
	// ErrCodeExpressionSyntax indicates a configured expression does not parse.
	ErrCodeExpressionSyntax ErrorCode = "EXPRESSION_SYNTAX"
	// ErrCodeUnknownNodeType indicates no service is registered for a node type.
	ErrCodeUnknownNodeType ErrorCode = "UNKNOWN_NODE_TYPE"
)

// Run-time errors
const (
	// ErrCodeExpressionEval indicates an expression failed or timed out at run time.
	ErrCodeExpressionEval ErrorCode = "EXPRESSION_EVAL"
	// ErrCodeNodeExecution indicates a node's execute step failed.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION"
	// ErrCodeRunCancelled indicates the run was stopped by an external request.
	ErrCodeRunCancelled ErrorCode = "RUN_CANCELLED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeUnknownField indicates metadata carries a key outside the closed contract.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"
)

// Infrastructure errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeDatabaseError:   true,
	ErrCodeExternalService: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
