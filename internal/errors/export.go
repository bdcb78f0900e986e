package errors

import (
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
	"google.golang.org/grpc/codes"
)

const (
	IDEmptySelection         = "export.validation.empty_selection"
	IDUnsupportedFormat      = "export.validation.unsupported_format"
	IDIntegrationUnavailable = "export.integration.unavailable"
)

// Sentinels for errors.Is; matching is by Id, so parameterised instances match too.
var (
	ErrEmptySelection         = &ExportError{Id: IDEmptySelection}
	ErrUnsupportedFormat      = &ExportError{Id: IDUnsupportedFormat}
	ErrIntegrationUnavailable = &ExportError{Id: IDIntegrationUnavailable}
)

// ExportError is a synchronous rejection of an export request. Its text can be
// translated; DetailedError keeps the untranslated fallback.
type ExportError struct {
	params        map[string]any
	Id            string     `json:"id"`
	DetailedError string     `json:"detail"`
	StatusCode    codes.Code `json:"code"`
}

func NewEmptySelectionError() *ExportError {
	return &ExportError{
		Id:            IDEmptySelection,
		DetailedError: "at least one document must be selected",
		StatusCode:    codes.InvalidArgument,
	}
}

func NewUnsupportedFormatError(integrationType, format string) *ExportError {
	return &ExportError{
		Id:            IDUnsupportedFormat,
		DetailedError: fmt.Sprintf("format %q is not supported by %s integrations", format, integrationType),
		StatusCode:    codes.InvalidArgument,
		params:        map[string]any{"Format": format, "Type": integrationType},
	}
}

func NewIntegrationUnavailableError(integrationID, status string) *ExportError {
	return &ExportError{
		Id:            IDIntegrationUnavailable,
		DetailedError: fmt.Sprintf("integration %s is %s", integrationID, status),
		StatusCode:    codes.FailedPrecondition,
		params:        map[string]any{"ID": integrationID, "Status": status},
	}
}

func (err *ExportError) Error() string {
	return fmt.Sprintf("ExportError [%s]: %s", err.Id, err.DetailedError)
}

func (err *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	return ok && t.Id == err.Id
}

func (err *ExportError) GRPCCode() codes.Code {
	if err.StatusCode == codes.OK {
		return codes.InvalidArgument
	}
	return err.StatusCode
}

func (err *ExportError) GetTranslationParams() map[string]any {
	return err.params
}

// Translate returns the localized message, or DetailedError when T has no entry for Id.
func (err *ExportError) Translate(T goi18n.TranslateFunc) string {
	if T == nil {
		return err.DetailedError
	}
	var text string
	if err.params == nil {
		text = T(err.Id)
	} else {
		text = T(err.Id, err.params)
	}
	if text == err.Id || text == "" {
		return err.DetailedError
	}
	return text
}

func (err *ExportError) ToJson() string {
	b, _ := json.Marshal(err)
	return string(b)
}

// IsValidation reports whether err rejects the request shape rather than the target.
func IsValidation(err error) bool {
	return Is(err, ErrEmptySelection) || Is(err, ErrUnsupportedFormat)
}
