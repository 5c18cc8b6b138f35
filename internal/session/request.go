package session

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/types"
)

// CreateRequest asks for a new tailoring session. Either JobText or JobURL
// must be set. Experience is optional when the supervisor has an
// ExperienceSource to read the owner's graph from.
type CreateRequest struct {
	OwnerID     uuid.UUID                 `json:"owner_id"`
	JobTitle    string                    `json:"job_title" validate:"max=300"`
	Company     string                    `json:"company" validate:"max=300"`
	JobText     string                    `json:"job_text" validate:"max=200000"`
	JobURL      string                    `json:"job_url" validate:"omitempty,http_url,max=2048"`
	Experience  *types.ExperienceSnapshot `json:"experience,omitempty"`
	Preferences map[string]any            `json:"preferences,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request and decodes its preferences
func (r *CreateRequest) Validate() (types.Preferences, error) {
	if r.OwnerID == uuid.Nil {
		return types.Preferences{}, &ValidationError{Field: "owner_id", Message: "required"}
	}
	r.JobText = strings.TrimSpace(r.JobText)
	r.JobURL = strings.TrimSpace(r.JobURL)
	if r.JobText == "" && r.JobURL == "" {
		return types.Preferences{}, &ValidationError{Field: "job_text", Message: "job text or an http(s) job URL is required"}
	}
	if err := validate.Struct(r); err != nil {
		return types.Preferences{}, toValidationError(err)
	}
	if r.JobURL == "" {
		// without a URL to ground from, the pasted text is all the extractor gets
		text, err := parsing.ReadableText(r.JobText)
		if err != nil || text == "" {
			return types.Preferences{}, &ValidationError{Field: "job_text", Message: "job text has no readable content"}
		}
	}

	prefs, err := types.DecodePreferences(r.Preferences)
	if err != nil {
		return types.Preferences{}, &ValidationError{Field: "preferences", Message: err.Error()}
	}
	if err := prefs.Validate(); err != nil {
		ve := toValidationError(err)
		ve.Field = "preferences." + ve.Field
		return types.Preferences{}, ve
	}
	return prefs, nil
}

func toValidationError(err error) *ValidationError {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		// first error only
		fe := errs[0]
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}
