package types

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requiredMessages are the user-facing messages for missing required answers.
var requiredMessages = map[string]string{
	"fullName":             "Name is required",
	"email":                "Email is required",
	"countryOfCitizenship": "Country of citizenship is required",
	"countryOfResidence":   "Country of residence is required",
	"ageGroup":             "Age group is required",
	"maritalStatus":        "Marital status is required",
	"highestEducation":     "Education level is required",
	"yearsOfExperience":    "Work experience is required",
	"occupation":           "Occupation is required",
}

// formValidator is shared; validator.Validate caches struct metadata and is
// safe for concurrent use.
var formValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Param names a FormOptions list, e.g. `option=country`.
	_ = v.RegisterValidation("option", func(fl validator.FieldLevel) bool {
		return IsOption(fl.Param(), fl.Field().String())
	})
	return v
}

// Validate checks that every required answer is present and that pick-list
// answers hold an allowed value. Drafts skip this check.
func (f *FormData) Validate() error {
	return validationError(formValidator.Struct(f))
}

// validationError converts validator output into ErrValidation.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ErrValidation{Field: "(form)", Message: "invalid request"}
	}

	out := &ErrValidation{Fields: make(map[string]string, len(verrs))}
	for i, fe := range verrs {
		msg := fieldMessage(fe.Field(), fe.Tag())
		out.Fields[fe.Field()] = msg
		if i == 0 {
			out.Field = fe.Field()
			out.Message = msg
		}
	}
	return out
}

func fieldMessage(field, tag string) string {
	switch tag {
	case "required":
		if msg, ok := requiredMessages[field]; ok {
			return msg
		}
		if field == "password" {
			return "Password is required"
		}
		return "Please select an option"
	case "email":
		return "Invalid email address"
	case "option":
		return "Please select a valid option"
	case "min":
		if field == "password" {
			return "Password is too short"
		}
		return "Value is too short"
	default:
		return "Invalid value"
	}
}
