package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

var timeRangePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]-([01][0-9]|2[0-3]):[0-5][0-9]$`)

// NewValidator returns a validator with the timetable specific tags
// registered and JSON field names reported in errors.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("timerange", func(fl validator.FieldLevel) bool {
		return timeRangePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	return v
}

// invalidInput converts a validator failure into INVALID_INPUT naming the
// first offending field.
func invalidInput(err error, message string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return appErrors.WithField(appErrors.ErrInvalidInput, field, message+": "+field+" failed "+verrs[0].Tag())
	}
	return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, message)
}

func notFound(entity string) error {
	return appErrors.WithField(appErrors.ErrNotFound, entity, entity+" not found")
}

func invalidRole(entity string) error {
	return appErrors.WithField(appErrors.ErrInvalidRole, entity, "referenced user is not a "+entity)
}

func mismatch(relation, message string) error {
	return appErrors.WithField(appErrors.ErrMismatch, relation, message)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
