// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Input
	ErrCodeDossierInvalid ErrorCode = "DOSSIER_INVALID"

	// Layout
	ErrCodePDFRenderFailed        ErrorCode = "PDF_RENDER_FAILED"
	ErrCodePDFSerializationFailed ErrorCode = "PDF_SERIALIZATION_FAILED"

	// Maps
	ErrCodeMapFetchFailed  ErrorCode = "MAP_FETCH_FAILED"
	ErrCodeGeocodeNotFound ErrorCode = "GEOCODE_NOT_FOUND"

	// Vision
	ErrCodeVisionTimeout       ErrorCode = "VISION_TIMEOUT"
	ErrCodeVisionFailed        ErrorCode = "VISION_FAILED"
	ErrCodeVisionOutputInvalid ErrorCode = "VISION_OUTPUT_INVALID"

	// Cerfa
	ErrCodeCerfaFillFailed      ErrorCode = "CERFA_FILL_FAILED"
	ErrCodeCerfaTemplateMissing ErrorCode = "CERFA_TEMPLATE_MISSING"

	// Infrastructure
	ErrCodeStorageFailed          ErrorCode = "STORAGE_FAILED"
	ErrCodeDocumentNotFound       ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape shared by workers and the HTTP layer.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError is thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewDossierInvalidError(details string) *StandardError {
	return newError(ErrCodeDossierInvalid, "Dossier input is invalid", details, false)
}

func NewPDFRenderFailedError(err error) *StandardError {
	return newError(ErrCodePDFRenderFailed, "Dossier PDF rendering failed", err.Error(), false)
}

func NewPDFSerializationFailedError(err error) *StandardError {
	return newError(ErrCodePDFSerializationFailed, "Dossier PDF serialization failed", err.Error(), true)
}

func NewMapFetchFailedError(purpose string, err error) *StandardError {
	return newError(ErrCodeMapFetchFailed, "Map image fetch failed", fmt.Sprintf("purpose: %s, error: %s", purpose, err.Error()), true)
}

func NewGeocodeNotFoundError(address string) *StandardError {
	return newError(ErrCodeGeocodeNotFound, "Address could not be geocoded", fmt.Sprintf("address: %s", address), false)
}

func NewVisionTimeoutError() *StandardError {
	return newError(ErrCodeVisionTimeout, "Photo description timeout", "vision model call exceeded its deadline", true)
}

func NewVisionFailedError(err error) *StandardError {
	return newError(ErrCodeVisionFailed, "Photo description API error", err.Error(), true)
}

func NewVisionOutputInvalidError(details string) *StandardError {
	return newError(ErrCodeVisionOutputInvalid, "Photo description output is not valid JSON", details, false)
}

func NewCerfaFillFailedError(err error) *StandardError {
	return newError(ErrCodeCerfaFillFailed, "Cerfa form fill failed", err.Error(), false)
}

func NewCerfaTemplateMissingError(path string) *StandardError {
	return newError(ErrCodeCerfaTemplateMissing, "Cerfa template not found", fmt.Sprintf("path: %s", path), false)
}

func NewStorageFailedError(op string, err error) *StandardError {
	return newError(ErrCodeStorageFailed, "Document storage error", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true)
}

func NewDocumentNotFoundError(key string) *StandardError {
	return newError(ErrCodeDocumentNotFound, "Stored document not found", fmt.Sprintf("key: %s", key), false)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

var retryCounts = map[ErrorCode]int{
	ErrCodeMapFetchFailed:         3,
	ErrCodeVisionFailed:           3,
	ErrCodeStorageFailed:          3,
	ErrCodeNotificationSendFailed: 3,
	ErrCodePDFSerializationFailed: 1,
	ErrCodeVisionTimeout:          2,
}

// GetRetryCount is the number of job retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	return retryCounts[code]
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	s := string(code)
	switch {
	case strings.HasPrefix(s, "DOSSIER"):
		return "VALIDATION"
	case strings.HasPrefix(s, "PDF"):
		return "LAYOUT"
	case strings.HasPrefix(s, "MAP") || strings.HasPrefix(s, "GEOCODE"):
		return "MAPS"
	case strings.HasPrefix(s, "VISION"):
		return "AI"
	case strings.HasPrefix(s, "CERFA"):
		return "FORM"
	case strings.HasPrefix(s, "STORAGE") || strings.HasPrefix(s, "DOCUMENT"):
		return "STORAGE"
	case strings.HasPrefix(s, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}

var constructors = map[ErrorCode]func(error) *StandardError{
	ErrCodeDossierInvalid:         func(err error) *StandardError { return NewDossierInvalidError(err.Error()) },
	ErrCodePDFRenderFailed:        NewPDFRenderFailedError,
	ErrCodePDFSerializationFailed: NewPDFSerializationFailedError,
	ErrCodeMapFetchFailed:         func(err error) *StandardError { return NewMapFetchFailedError("all", err) },
	ErrCodeGeocodeNotFound:        func(err error) *StandardError { return NewGeocodeNotFoundError(err.Error()) },
	ErrCodeVisionTimeout:          func(error) *StandardError { return NewVisionTimeoutError() },
	ErrCodeVisionFailed:           NewVisionFailedError,
	ErrCodeVisionOutputInvalid:    func(err error) *StandardError { return NewVisionOutputInvalidError(err.Error()) },
	ErrCodeCerfaFillFailed:        NewCerfaFillFailedError,
	ErrCodeCerfaTemplateMissing:   func(err error) *StandardError { return NewCerfaTemplateMissingError(err.Error()) },
	ErrCodeStorageFailed:          func(err error) *StandardError { return NewStorageFailedError("unknown", err) },
	ErrCodeDocumentNotFound:       func(err error) *StandardError { return NewDocumentNotFoundError(err.Error()) },
	ErrCodeNotificationSendFailed: func(err error) *StandardError { return NewNotificationSendFailedError("unknown", err) },
}

// Classify turns any error into a StandardError. Packages signal failures
// with sentinel errors whose text is an ErrorCode; the first such sentinel
// found in the wrap tree picks the code.
func Classify(err error) *StandardError {
	if err == nil {
		return nil
	}
	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}
	if build, ok := constructors[findCode(err)]; ok {
		return build(err)
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

func findCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if _, ok := constructors[ErrorCode(err.Error())]; ok {
		return ErrorCode(err.Error())
	}
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return findCode(e.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if code := findCode(inner); code != "" {
				return code
			}
		}
	}
	return ""
}
