package dto

import (
	"reflect"
	"regexp"
	"strings"

	"banking-services/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	customerIDRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.@:]{1,64}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("customer_id", validateCustomerID)
		_ = v.RegisterValidation("currency", validateCurrency)
	}
}

// validateCustomerID allows alphanumerics and _ - . @ : up to 64 characters.
func validateCustomerID(fl validator.FieldLevel) bool {
	return customerIDRe.MatchString(fl.Field().String())
}

// validateCurrency accepts an ISO-4217 code in any case; case is normalized later.
func validateCurrency(fl validator.FieldLevel) bool {
	return domain.IsCurrencyCode(strings.ToUpper(fl.Field().String()))
}

// TrimStrings trims surrounding whitespace from every exported string field
// (including *string) of a struct pointer.
func TrimStrings(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	trimFields(rv.Elem())
}

func trimFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(strings.TrimSpace(elem.String()))
			}
		}
	}
}
