// Package validation owns the request-shape rules. It registers custom rules
// on gin's validator engine so `binding` tags and spreadsheet rows are checked
// by the same code.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers written without a country code.
const DefaultPhoneRegion = "VN"

const passwordSpecials = "@$!%*?&"

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var (
	mu          sync.RWMutex
	phoneRegion = DefaultPhoneRegion
	once        sync.Once
	setupErr    error
)

// Setup registers the custom rules on gin's engine. Safe to call repeatedly;
// region is applied each time.
func Setup(region string) error {
	if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
		mu.Lock()
		phoneRegion = region
		mu.Unlock()
	}

	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			setupErr = errors.New("validation: gin validator engine is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(jsonFieldName)

		rules := map[string]validator.Func{
			"strongpassword": func(fl validator.FieldLevel) bool { return IsStrongPassword(fl.Field().String()) },
			"phone":          func(fl validator.FieldLevel) bool { return IsPhone(fl.Field().String()) },
			"role":           func(fl validator.FieldLevel) bool { return user.Role(fl.Field().String()).IsValid() },
			"notblank":       func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				setupErr = fmt.Errorf("validation: register %s: %w", tag, err)
				return
			}
		}
	})

	return setupErr
}

// Struct validates v with the same engine gin uses for binding.
func Struct(v any) error {
	if err := Setup(""); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(v)
}

// Fields flattens validator errors into field/rule pairs keyed by json name.
// It returns nil when err is not a validation error.
func Fields(err error) []FieldError {
	var validatorError validator.ValidationErrors
	if !errors.As(err, &validatorError) {
		return nil
	}

	fields := make([]FieldError, 0, len(validatorError))
	for _, fieldError := range validatorError {
		rule := fieldError.Tag()
		param := fieldError.Param()
		fields = append(fields, FieldError{
			Field:   fieldPath(fieldError),
			Rule:    rule,
			Param:   param,
			Message: Message(rule, param),
		})
	}
	return fields
}

// Summary renders field errors as one line, e.g. for an import row report.
func Summary(fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func Message(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "uuid":
		return "must be a valid UUID"
	case "eqfield":
		return "must match " + param
	case "gtefield":
		return "must not be before " + param
	case "required_with":
		return "is required with " + param
	case "boolean":
		return "must be true or false"
	case "datetime":
		return "must be a date (" + param + ")"
	case "notblank":
		return "must not be blank"
	case "phone":
		return "must be a valid phone number"
	case "role":
		return "must be one of Admin, Cashier, Kitchen, Waiter"
	case "strongpassword":
		return "must contain an uppercase letter, a lowercase letter, a number and one of " + passwordSpecials
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

// IsStrongPassword requires at least one lower, upper, digit and special
// character, and allows nothing outside letters, digits and the specials.
func IsStrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			return false
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

func IsPhone(s string) bool {
	num, err := phonenumbers.Parse(strings.TrimSpace(s), region())
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// NormalizePhone returns the E.164 form of s, or s trimmed when it does not
// parse.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	num, err := phonenumbers.Parse(s, region())
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func region() string {
	mu.RLock()
	defer mu.RUnlock()
	return phoneRegion
}

func jsonFieldName(sf reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(sf.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return sf.Name
}

// fieldPath drops the root struct name from the namespace, leaving e.g.
// "ids[2]" or "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}
