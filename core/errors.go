package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfigIncomplete   = "PID_CONFIG_INCOMPLETE"
	ErrorTransportFailure   = "PID_TRANSPORT_FAILURE"
	ErrorSemanticFailure    = "PID_SEMANTIC_FAILURE"
	ErrorPreconditionFailed = "PID_PRECONDITION_FAILED"
	ErrorBadInput           = "PID_BAD_INPUT"
	ErrorInternal           = "PID_INTERNAL_ERROR"
	ErrorReconcileConflict  = "PID_RECONCILE_CONFLICT"
)

// Precondition reasons, stored under the "reason" metadata key.
const (
	ReasonEmptyTargetField   = "empty_target_field"
	ReasonNoURLValueToUpdate = "no_url_value_to_update"
	ReasonUpdateUnsupported  = "update_unsupported"
	ReasonObjectUnavailable  = "object_unavailable"
	ReasonInvalidLocator     = "invalid_locator"
)

const metadataKeyReason = "reason"

var (
	ErrConfigNotFound          = errors.New("core: identifier configuration not found")
	ErrBackendNotFound         = errors.New("core: service backend not found")
	ErrProfileNotFound         = errors.New("core: data profile not found")
	ErrReconcileCursorNotFound = errors.New("core: reconcile cursor not found")
	ErrReconcileCursorConflict = errors.New("core: reconcile cursor advance conflict")
	ErrObjectNotFound          = errors.New("core: target object not found")
)

func ConfigIncompleteError(message string, metadata map[string]any) *goerrors.Error {
	return newPIDError(message, goerrors.CategoryValidation, http.StatusUnprocessableEntity, ErrorConfigIncomplete, metadata)
}

func WrapConfigIncomplete(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapPIDError(source, message, goerrors.CategoryValidation, http.StatusUnprocessableEntity, ErrorConfigIncomplete, metadata)
}

func TransportFailure(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapPIDError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, ErrorTransportFailure, metadata)
}

func SemanticFailure(message string, metadata map[string]any) *goerrors.Error {
	return newPIDError(message, goerrors.CategoryOperation, http.StatusBadGateway, ErrorSemanticFailure, metadata)
}

func PreconditionFailure(reason string, message string, metadata map[string]any) *goerrors.Error {
	merged := cloneFields(metadata)
	merged[metadataKeyReason] = reason
	return newPIDError(message, goerrors.CategoryBadInput, http.StatusPreconditionFailed, ErrorPreconditionFailed, merged)
}

func BadInputError(message string, metadata map[string]any) *goerrors.Error {
	return newPIDError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

func InternalError(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapPIDError(source, message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, metadata)
}

func ReconcileConflictError(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapPIDError(source, message, goerrors.CategoryConflict, http.StatusConflict, ErrorReconcileConflict, metadata)
}

func IsConfigIncomplete(err error) bool { return hasTextCode(err, ErrorConfigIncomplete) }

func IsTransportFailure(err error) bool { return hasTextCode(err, ErrorTransportFailure) }

func IsSemanticFailure(err error) bool { return hasTextCode(err, ErrorSemanticFailure) }

func IsPreconditionFailure(err error) bool { return hasTextCode(err, ErrorPreconditionFailed) }

func IsReconcileConflict(err error) bool { return hasTextCode(err, ErrorReconcileConflict) }

func IsBadInput(err error) bool { return hasTextCode(err, ErrorBadInput) }

// FailureReason returns the precondition reason carried by err, if any.
func FailureReason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil || len(rich.Metadata) == 0 {
		return ""
	}
	reason, _ := rich.Metadata[metadataKeyReason].(string)
	return reason
}

// annotateError attaches call context to a pid error envelope and returns it.
// Non-envelope errors are mapped first.
func annotateError(err error, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	rich := pidErrorMapper(err)
	if rich == nil {
		return err
	}
	if len(metadata) > 0 {
		rich.WithMetadata(cloneFields(metadata))
	}
	return rich
}

func hasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return rich.TextCode == code
}

func newPIDError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(cloneFields(metadata))
	}
	return err
}

func wrapPIDError(source error, message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newPIDError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(cloneFields(metadata))
	}
	return err
}

func pidErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePIDErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrConfigNotFound), errors.Is(err, ErrBackendNotFound), errors.Is(err, ErrProfileNotFound):
		return WrapConfigIncomplete(err, err.Error(), nil)
	case errors.Is(err, ErrReconcileCursorConflict):
		return ReconcileConflictError(err, err.Error(), nil)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return BadInputError(err.Error(), nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePIDErrorEnvelope(mapped)
}

func ensurePIDErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = pidHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPIDTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPIDTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation, goerrors.CategoryNotFound:
		return ErrorConfigIncomplete
	case goerrors.CategoryExternal:
		return ErrorTransportFailure
	case goerrors.CategoryOperation:
		return ErrorSemanticFailure
	case goerrors.CategoryConflict:
		return ErrorReconcileConflict
	default:
		return ErrorInternal
	}
}

func pidHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation, goerrors.CategoryNotFound:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return http.StatusBadGateway
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
