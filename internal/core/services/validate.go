package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

var (
	// requestValidator checks request structs at the service boundary.
	requestValidator = validator.New(validator.WithRequiredStructEnabled())

	// trans renders validator failures as English sentences.
	trans, _ = ut.New(en.New()).GetTranslator("en")
)

func init() {
	requestValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = entranslations.RegisterDefaultTranslations(requestValidator, trans)
}

// validateRequest validates req and reports every failing field under code
func validateRequest(code string, req any) error {
	violations, err := requestViolations(req)
	if err != nil {
		return domain.NewValidationError(code, err.Error(), nil)
	}
	if len(violations) > 0 {
		return domain.NewValidationError(code, "request is invalid", violations)
	}
	return nil
}

// requestViolations runs the tag checks on req and returns the failures as
// violations, so callers can merge them with their own checks. The error is
// set only when req cannot be validated at all.
func requestViolations(req any) ([]domain.Violation, error) {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	violations := make([]domain.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, domain.Violation{
			Field:   fieldPathOf(fe.Namespace()),
			Message: fe.Translate(trans),
		})
	}
	return violations, nil
}

// fieldPathOf drops the struct name from a validator namespace
func fieldPathOf(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
