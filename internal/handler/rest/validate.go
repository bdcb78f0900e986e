package rest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// createJobRequest only checks shape; selection, integration and format are
// classified by the job manager so its check order holds.
type createJobRequest struct {
	DocumentIDs   []string            `json:"documentIds" validate:"omitempty,dive,required,max=128"`
	All           bool                `json:"all"`
	IntegrationID string              `json:"integrationId" validate:"max=128"`
	Format        model.Format        `json:"format" validate:"max=32"`
	Options       model.ExportOptions `json:"options"`
}

type integrationConfigRequest struct {
	SiteURL         string            `json:"siteUrl" validate:"required,url"`
	AutoSync        bool              `json:"autoSync"`
	FolderPath      string            `json:"folderPath" validate:"max=512"`
	PermissionLevel string            `json:"permissionLevel" validate:"omitempty,oneof=read write admin"`
	Credentials     map[string]string `json:"credentials"`
}

type registerIntegrationRequest struct {
	Name          string                   `json:"name" validate:"required,max=128"`
	Type          model.IntegrationType    `json:"type" validate:"required,oneof=sharepoint confluence object-storage"`
	Configuration integrationConfigRequest `json:"configuration" validate:"required"`
}

func (r registerIntegrationRequest) model() model.NewIntegration {
	return model.NewIntegration{
		Name: r.Name,
		Type: r.Type,
		Configuration: model.IntegrationConfig{
			SiteURL:         r.Configuration.SiteURL,
			AutoSync:        r.Configuration.AutoSync,
			FolderPath:      r.Configuration.FolderPath,
			PermissionLevel: r.Configuration.PermissionLevel,
			Credentials:     r.Configuration.Credentials,
		},
	}
}

// validateRequest turns validator failures into one InvalidArgument error
// listing every offending field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.InvalidArgument("invalid request", errors.WithCause(err), errors.WithID("api.request.invalid"))
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.InvalidArgument(strings.Join(msgs, "; "), errors.WithID("api.request.invalid"))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of [%s]", field, fe.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s long", field, fe.Param())
	default:
		return fmt.Sprintf("field '%s' is invalid: %s", field, fe.Tag())
	}
}
