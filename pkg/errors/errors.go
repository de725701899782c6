// Package errors provides the structured error system for objclient with error codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for objclient operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Addressing Errors
	ErrCodeAddressingInvalid ErrorCode = "ADDRESSING_INVALID"
	ErrCodeEndpointInvalid   ErrorCode = "ADDRESSING_ENDPOINT_INVALID"

	// Signing Errors
	ErrCodeSigningNoRegion     ErrorCode = "SIGNING_NO_REGION"
	ErrCodeSigningFailed       ErrorCode = "SIGNING_FAILED"
	ErrCodeCredentialsMissing  ErrorCode = "CREDENTIALS_MISSING"
	ErrCodeCredentialsRetrieve ErrorCode = "CREDENTIALS_RETRIEVE"

	// Integrity Errors
	ErrCodeDigestMismatch ErrorCode = "INTEGRITY_DIGEST_MISMATCH"
	ErrCodeLengthMismatch ErrorCode = "INTEGRITY_LENGTH_MISMATCH"

	// Transfer Errors
	ErrCodeUploadBufferLimit ErrorCode = "UPLOAD_BUFFER_LIMIT"
	ErrCodeTransferCanceled  ErrorCode = "UPLOAD_CANCELED"

	// Service Errors
	ErrCodeServiceTransient ErrorCode = "SERVICE_TRANSIENT"
	ErrCodeServiceTerminal  ErrorCode = "SERVICE_TERMINAL"
	ErrCodeRegionProbe      ErrorCode = "SERVICE_REGION_PROBE"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAddressing    ErrorCategory = "addressing"
	CategorySigning       ErrorCategory = "signing"
	CategoryIntegrity     ErrorCategory = "integrity"
	CategoryTransfer      ErrorCategory = "transfer"
	CategoryService       ErrorCategory = "service"
	CategoryInternal      ErrorCategory = "internal"
)

// ClientError represents a structured error with context and metadata.
type ClientError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *ClientError) Is(target error) bool {
	if clientErr, ok := target.(*ClientError); ok {
		return e.Code == clientErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *ClientError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("RequestID=%s", e.RequestID))
	}

	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}

	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("ClientError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *ClientError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new client error with default values.
func NewError(code ErrorCode, message string) *ClientError {
	return &ClientError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf creates a new client error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *ClientError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "ADDRESSING_"):
		return CategoryAddressing
	case strings.HasPrefix(codeStr, "SIGNING_") || strings.HasPrefix(codeStr, "CREDENTIALS_"):
		return CategorySigning
	case strings.HasPrefix(codeStr, "INTEGRITY_"):
		return CategoryIntegrity
	case strings.HasPrefix(codeStr, "UPLOAD_"):
		return CategoryTransfer
	case strings.HasPrefix(codeStr, "SERVICE_"):
		return CategoryService
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
// Integrity failures are never retryable: they may indicate corruption.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeServiceTransient: true,
		ErrCodeRegionProbe:      true,
		ErrCodeInternalError:    true,
	}
	return retryableCodes[code]
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeInvalidConfig:       400,
		ErrCodeConfigValidation:    400,
		ErrCodeAddressingInvalid:   400,
		ErrCodeEndpointInvalid:     400,
		ErrCodeUploadBufferLimit:   400,
		ErrCodeCredentialsMissing:  401,
		ErrCodeSigningNoRegion:     400,
		ErrCodeDigestMismatch:      500,
		ErrCodeLengthMismatch:      500,
		ErrCodeServiceTransient:    200,
		ErrCodeInternalError:       500,
		ErrCodeCredentialsRetrieve: 401,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500
}

// WithContext adds contextual information to an error
func (e *ClientError) WithContext(key, value string) *ClientError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *ClientError) WithDetail(key string, value interface{}) *ClientError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *ClientError) WithComponent(component string) *ClientError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *ClientError) WithOperation(operation string) *ClientError {
	e.Operation = operation
	return e
}

// WithRequestID sets the service request identifier
func (e *ClientError) WithRequestID(requestID string) *ClientError {
	e.RequestID = requestID
	return e
}

// WithCause sets the underlying cause
func (e *ClientError) WithCause(cause error) *ClientError {
	e.Cause = cause
	return e
}

// HasCode reports whether err is, or wraps, a ClientError carrying code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if ce, ok := err.(*ClientError); ok && ce.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsIntegrityError reports whether err carries an integrity failure.
func IsIntegrityError(err error) bool {
	return HasCode(err, ErrCodeDigestMismatch) || HasCode(err, ErrCodeLengthMismatch)
}

// GetRecommendation returns an operator-facing hint for fixing the error
func (e *ClientError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeAddressingInvalid: "The bucket name is not usable with the requested addressing style. " +
			"Disable accelerate mode or forced path style, or rename the bucket to a DNS compatible name.",
		ErrCodeSigningNoRegion: "No signing region could be determined. " +
			"Set the client region or a signer region override in the configuration.",
		ErrCodeDigestMismatch: "The transferred bytes do not match the service digest. " +
			"The data may be corrupted; do not reuse it.",
		ErrCodeLengthMismatch: "The number of transferred bytes does not match the declared length.",
		ErrCodeUploadBufferLimit: "The upload body has no known length and exceeds the in-memory buffer. " +
			"Provide an explicit content length or a seekable body.",
		ErrCodeCredentialsMissing: "Credentials not found. " +
			"Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY or configure a credentials file.",
	}

	if rec, exists := recommendations[e.Code]; exists {
		return rec
	}

	return "Please check the error message for details."
}

// DetailedDiagnostic returns a comprehensive diagnostic message
func (e *ClientError) DetailedDiagnostic() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Error: %s", e.Message))
	parts = append(parts, fmt.Sprintf("Code: %s", e.Code))
	parts = append(parts, fmt.Sprintf("Category: %s", e.Category))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component: %s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", e.Operation))
	}

	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("Request ID: %s", e.RequestID))
	}

	if len(e.Context) > 0 {
		parts = append(parts, "\nContext:")
		for k, v := range e.Context {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, v))
		}
	}

	if len(e.Details) > 0 {
		parts = append(parts, "\nDetails:")
		for k, v := range e.Details {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, v))
		}
	}

	parts = append(parts, "\nRecommendation:")
	parts = append(parts, "  "+e.GetRecommendation())

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("\nUnderlying cause: %s", e.Cause.Error()))
	}

	return strings.Join(parts, "\n")
}
