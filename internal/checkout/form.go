package checkout

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const minPhoneDigits = 10

// Form is the shipping and contact information collected at checkout.
type Form struct {
	FullName string `json:"fullName" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,loose_email"`
	Phone    string `json:"phone" validate:"notblank,phone_digits"`
	Address  string `json:"address" validate:"notblank"`
	City     string `json:"city" validate:"notblank"`
	ZipCode  string `json:"zipCode" validate:"notblank"`
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		FullName: strings.TrimSpace(f.FullName),
		Email:    strings.TrimSpace(f.Email),
		Phone:    strings.TrimSpace(f.Phone),
		Address:  strings.TrimSpace(f.Address),
		City:     strings.TrimSpace(f.City),
		ZipCode:  strings.TrimSpace(f.ZipCode),
	}
}

// Result maps field names (JSON form) to the first rule they broke.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

var looseEmail = regexp.MustCompile(`\S+@\S+\.\S+`)

var fieldMessages = map[string]map[string]string{
	"fullName": {"notblank": "Full name is required"},
	"email":    {"notblank": "Email is required", "loose_email": "Email is invalid"},
	"phone":    {"notblank": "Phone number is required", "phone_digits": "Phone number must be at least 10 digits"},
	"address":  {"notblank": "Address is required"},
	"city":     {"notblank": "City is required"},
	"zipCode":  {"notblank": "ZIP code is required"},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return looseEmail.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return countDigits(fl.Field().String()) >= minPhoneDigits
	})
	return v
}

// Validate checks every field and reports one message per failing field.
func Validate(form Form) Result {
	err := validate.Struct(form)
	if err == nil {
		return Result{Valid: true}
	}

	errs := map[string]string{}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["form"] = err.Error()
		return Result{Errors: errs}
	}
	for _, fe := range fieldErrs {
		msg, found := fieldMessages[fe.Field()][fe.Tag()]
		if !found {
			msg = "is invalid"
		}
		errs[fe.Field()] = msg
	}
	return Result{Errors: errs}
}

func countDigits(value string) int {
	n := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
