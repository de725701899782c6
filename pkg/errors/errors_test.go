package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with all defaults", func(t *testing.T) {
		err := NewError(ErrCodeInvalidConfig, "configuration is invalid")
		if err == nil {
			t.Fatal("NewError returned nil")
		}
		if err.Code != ErrCodeInvalidConfig {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
		}
		if err.Message != "configuration is invalid" {
			t.Errorf("Message = %q, want %q", err.Message, "configuration is invalid")
		}
		if err.Category != CategoryConfiguration {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfiguration)
		}
		if err.Details == nil {
			t.Error("Details map is nil")
		}
		if err.Context == nil {
			t.Error("Context map is nil")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	})

	t.Run("sets correct retryable defaults", func(t *testing.T) {
		if !NewError(ErrCodeServiceTransient, "embedded error").Retryable {
			t.Error("ServiceTransient should be retryable by default")
		}
		if NewError(ErrCodeDigestMismatch, "digest").Retryable {
			t.Error("DigestMismatch must never be retryable")
		}
		if NewError(ErrCodeLengthMismatch, "length").Retryable {
			t.Error("LengthMismatch must never be retryable")
		}
	})

	t.Run("formats message", func(t *testing.T) {
		err := Newf(ErrCodeSigningNoRegion, "no region for bucket %q", "b")
		if err.Message != `no region for bucket "b"` {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     ErrorCode
		expected ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeAddressingInvalid, CategoryAddressing},
		{ErrCodeEndpointInvalid, CategoryAddressing},
		{ErrCodeSigningNoRegion, CategorySigning},
		{ErrCodeCredentialsMissing, CategorySigning},
		{ErrCodeDigestMismatch, CategoryIntegrity},
		{ErrCodeLengthMismatch, CategoryIntegrity},
		{ErrCodeUploadBufferLimit, CategoryTransfer},
		{ErrCodeServiceTransient, CategoryService},
		{ErrCodeServiceTerminal, CategoryService},
		{ErrCodeInternalError, CategoryInternal},
		{ErrCodeUnknownError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			result := GetCategory(tt.code)
			if result != tt.expected {
				t.Errorf("GetCategory(%v) = %v, want %v", tt.code, result, tt.expected)
			}
		})
	}
}

func TestGetDefaultHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{ErrCodeInvalidConfig, 400},
		{ErrCodeAddressingInvalid, 400},
		{ErrCodeCredentialsMissing, 401},
		{ErrCodeServiceTransient, 200},
		{ErrCodeDigestMismatch, 500},
		{ErrorCode("UNKNOWN_CODE"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			result := GetDefaultHTTPStatus(tt.code)
			if result != tt.wantStatus {
				t.Errorf("GetDefaultHTTPStatus(%v) = %d, want %d", tt.code, result, tt.wantStatus)
			}
		})
	}
}

func TestClientError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{
			name: "with component and operation",
			err: &ClientError{
				Code:      ErrCodeDigestMismatch,
				Component: "integrity",
				Operation: "download",
				Message:   "digest mismatch",
			},
			want: "[integrity:download] INTEGRITY_DIGEST_MISMATCH: digest mismatch",
		},
		{
			name: "with component only",
			err: &ClientError{
				Code:      ErrCodeInvalidConfig,
				Component: "config",
				Message:   "invalid value",
			},
			want: "[config] INVALID_CONFIG: invalid value",
		},
		{
			name: "with cause",
			err: &ClientError{
				Code:    ErrCodeUnknownError,
				Message: "something went wrong",
				Cause:   errors.New("boom"),
			},
			want: "UNKNOWN_ERROR: something went wrong: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.want {
				t.Errorf("Error() = %q, want %q", result, tt.want)
			}
		})
	}
}

func TestClientError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying cause")
	err := NewError(ErrCodeLengthMismatch, "short read").WithCause(cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, NewError(ErrCodeLengthMismatch, "other")) {
		t.Error("errors with same code should match with errors.Is")
	}
	if errors.Is(err, NewError(ErrCodeDigestMismatch, "other")) {
		t.Error("errors with different codes should not match")
	}

	wrapped := fmt.Errorf("upload: %w", err)
	if !HasCode(wrapped, ErrCodeLengthMismatch) {
		t.Error("HasCode should see through fmt wrapping")
	}
	if !IsIntegrityError(wrapped) {
		t.Error("IsIntegrityError should report length mismatch")
	}
	if IsIntegrityError(cause) {
		t.Error("plain error is not an integrity error")
	}
}

func TestClientError_String(t *testing.T) {
	t.Parallel()

	err := &ClientError{
		Code:      ErrCodeServiceTransient,
		Category:  CategoryService,
		Message:   "We encountered an internal error. Please try again.",
		Component: "multipart",
		Operation: "complete",
		RequestID: "req-123",
		Retryable: true,
		Details:   map[string]interface{}{"attempt": 2},
		Cause:     errors.New("InternalError"),
	}

	result := err.String()

	expectedParts := []string{
		"Code=SERVICE_TRANSIENT",
		"Category=service",
		"Component=multipart",
		"Operation=complete",
		"RequestID=req-123",
		"Retryable=true",
		"Details=",
		"Cause=",
	}

	for _, part := range expectedParts {
		if !strings.Contains(result, part) {
			t.Errorf("String() missing expected part: %q\nGot: %s", part, result)
		}
	}
}

func TestClientError_JSON(t *testing.T) {
	t.Parallel()

	err := &ClientError{
		Code:       ErrCodeInvalidConfig,
		Category:   CategoryConfiguration,
		Message:    "invalid setting",
		Component:  "config",
		HTTPStatus: 400,
	}

	var parsed map[string]interface{}
	if parseErr := json.Unmarshal([]byte(err.JSON()), &parsed); parseErr != nil {
		t.Fatalf("JSON() returned invalid JSON: %v", parseErr)
	}
	if parsed["code"] != "INVALID_CONFIG" {
		t.Errorf("JSON code = %v, want INVALID_CONFIG", parsed["code"])
	}
	if parsed["retryable"] != false {
		t.Errorf("JSON retryable = %v, want false", parsed["retryable"])
	}
}

func TestDetailedDiagnostic(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeAddressingInvalid, "bucket not DNS compatible").
		WithComponent("addressing").
		WithOperation("resolve").
		WithRequestID("abc").
		WithContext("bucket", "My_Bucket")

	diag := err.DetailedDiagnostic()
	for _, part := range []string{"Code: ADDRESSING_INVALID", "Request ID: abc", "bucket: My_Bucket", "Recommendation:"} {
		if !strings.Contains(diag, part) {
			t.Errorf("diagnostic missing %q:\n%s", part, diag)
		}
	}
}
