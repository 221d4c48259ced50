package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
	ErrCodeMessagingError     ErrorCode = "COMMON_018"
)

// Aliases used by call sites that predate the module prefixes.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Clinical NLP Module Error Codes
const (
	ErrCodeExtractorConfigInvalid ErrorCode = "NLP_001"
	ErrCodeVocabularyInvalid      ErrorCode = "NLP_002"
	ErrCodeLabPatternInvalid      ErrorCode = "NLP_003"
)

// Timeline Module Error Codes
const (
	ErrCodeTimelineBuildFailed ErrorCode = "TML_001"
)

// Chunk Preparation Module Error Codes
const (
	ErrCodeChunkAssemblyFailed ErrorCode = "RAG_001"
	ErrCodeChunkIDModeInvalid  ErrorCode = "RAG_002"
)

// Ingestion Module Error Codes
const (
	ErrCodeIngestionReadFailed ErrorCode = "ING_001"
	ErrCodeDocumentTooShort    ErrorCode = "ING_002"
	ErrCodeUnsupportedFormat   ErrorCode = "ING_003"
)

// Pipeline Module Error Codes
const (
	ErrCodePipelineStepFailed ErrorCode = "PIP_001"
	ErrCodeNoDocuments        ErrorCode = "PIP_002"
)

// Validation Collaborator Error Codes
const (
	ErrCodeValidatorUnavailable ErrorCode = "VAL_001"
	ErrCodeValidatorRejected    ErrorCode = "VAL_002"
)

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses for the CLI.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeInternal:   1,
	ErrCodeBadRequest: 2,
	ErrCodeValidation: 2,
	ErrCodeNotFound:   3,

	ErrCodeIngestionReadFailed: 3,
	ErrCodeUnsupportedFormat:   3,
	ErrCodeNoDocuments:         4,
	ErrCodeDocumentTooShort:    4,

	ErrCodeExtractorConfigInvalid: 5,
	ErrCodeVocabularyInvalid:      5,
	ErrCodeLabPatternInvalid:      5,
	ErrCodeChunkIDModeInvalid:     5,

	ErrCodeServiceUnavailable: 69,
	ErrCodeExternalService:    69,
	ErrCodeCacheError:         69,
	ErrCodeStorageError:       69,
	ErrCodeMessagingError:     69,
	ErrCodeTimeout:            75,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache operation failed",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "messaging error",

	ErrCodeExtractorConfigInvalid: "invalid extractor configuration",
	ErrCodeVocabularyInvalid:      "invalid vocabulary file",
	ErrCodeLabPatternInvalid:      "invalid lab pattern",
	ErrCodeTimelineBuildFailed:    "timeline build failed",
	ErrCodeChunkAssemblyFailed:    "chunk assembly failed",
	ErrCodeChunkIDModeInvalid:     "invalid chunk id mode",
	ErrCodeIngestionReadFailed:    "document could not be read",
	ErrCodeDocumentTooShort:       "document text too short",
	ErrCodeUnsupportedFormat:      "unsupported document format",
	ErrCodePipelineStepFailed:     "pipeline step failed",
	ErrCodeNoDocuments:            "no documents to process",
	ErrCodeValidatorUnavailable:   "entity validator unavailable",
	ErrCodeValidatorRejected:      "entity validator rejected the batch",
}

// ExitStatusForCode returns the CLI exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return 1
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsRetryable reports whether a failure with this code may succeed on retry.
// Only infrastructure codes qualify; core pipeline failures are deterministic.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeExternalService,
		ErrCodeCacheError, ErrCodeStorageError, ErrCodeMessagingError,
		ErrCodeTooManyRequests, ErrCodeValidatorUnavailable:
		return true
	}
	return false
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
