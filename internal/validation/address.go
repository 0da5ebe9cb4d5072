package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"storefront-checkout/internal/model"
)

var (
	nonDigit    = regexp.MustCompile(`\D`)
	postalCode  = regexp.MustCompile(`^\d{6}$`)
	basicEmail  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	onceInit    sync.Once
	addressVali *validator.Validate
)

// addressRules mirrors model.Address with the checkout form's constraints.
type addressRules struct {
	Name       string `json:"name" validate:"notblank"`
	Phone      string `json:"phone" validate:"notblank,phone10"`
	Email      string `json:"email" validate:"notblank,basic_email"`
	Street     string `json:"street" validate:"notblank"`
	City       string `json:"city" validate:"notblank"`
	State      string `json:"state" validate:"notblank"`
	PostalCode string `json:"postal_code" validate:"notblank,postal6"`
}

var messages = map[string]string{
	"notblank":    "is required",
	"phone10":     "must contain exactly 10 digits",
	"basic_email": "must be a valid email address",
	"postal6":     "must be a 6-digit postal code",
}

var customRules = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
	"phone10": func(fl validator.FieldLevel) bool {
		return len(NormalizePhone(fl.Field().String())) == 10
	},
	"postal6": func(fl validator.FieldLevel) bool {
		return postalCode.MatchString(strings.TrimSpace(fl.Field().String()))
	},
	"basic_email": func(fl validator.FieldLevel) bool {
		return basicEmail.MatchString(strings.TrimSpace(fl.Field().String()))
	},
}

func instance() *validator.Validate {
	onceInit.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		var errs []error
		for tag, fn := range customRules {
			errs = append(errs, v.RegisterValidation(tag, fn))
		}
		if err := errors.Join(errs...); err != nil {
			panic("validation: register address rules: " + err.Error())
		}
		addressVali = v
	})
	return addressVali
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	return nonDigit.ReplaceAllString(phone, "")
}

// Normalize trims whitespace and reduces the phone number to its digits.
func Normalize(a model.Address) model.Address {
	return model.Address{
		Name:       strings.TrimSpace(a.Name),
		Phone:      NormalizePhone(a.Phone),
		Email:      strings.TrimSpace(a.Email),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

// Address validates every field of a and returns field -> message for each
// failure. Keys are prefixed with prefix (e.g. "billing.") when non-empty.
// A nil map means the address is valid.
func Address(a model.Address, prefix string) map[string]string {
	err := instance().Struct(addressRules(a))
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{prefix + "address": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := prefix + fe.Field()
		if _, seen := fields[key]; seen {
			continue
		}
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[key] = msg
	}
	return fields
}
