package factory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/textile-ledger/textile"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names so errors match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one failed struct tag.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Validate checks v's `validate` tags. The first failure is returned as a
// *textile.ValidationError so callers map it like any other input error.
func Validate(v interface{}) error {
	errs := ValidateStruct(v)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	reason := "failed " + first.Tag
	if first.Param != "" {
		reason = fmt.Sprintf("failed %s=%s", first.Tag, first.Param)
	}
	return &textile.ValidationError{Field: first.Field, Reason: reason}
}

// ValidateStruct lists every failed tag on v.
func ValidateStruct(v interface{}) []*FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*FieldError{{Field: "body", Tag: err.Error()}}
	}
	out := make([]*FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, &FieldError{
			Field: fieldPath(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "TransactionJSON.items[0].quantity" -> "items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
