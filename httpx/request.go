package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/ajg/form"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/mbolis/quick-questionnaire/catalog"
)

// Validate checks request structs. The "noplaceholder" tag rejects text
// holding placeholder delimiters.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("noplaceholder", func(fl validator.FieldLevel) bool {
		return !catalog.HasDelimiters(fl.Field().String())
	})
	return v
}

// ErrBadBody is returned when the body cannot be decoded at all.
var ErrBadBody = errors.New("malformed request body")

// Normalizer is implemented by request structs that clean up their fields
// before validation.
type Normalizer interface {
	Normalize()
}

// Decode reads a JSON or url-encoded body into v and validates it. A
// validation failure comes back as validator.ValidationErrors.
func Decode(r *http.Request, v any) error {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		err = form.NewDecoder(r.Body).Decode(v)
	} else {
		err = render.DecodeJSON(r.Body, v)
	}
	if err != nil {
		return ErrBadBody
	}
	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	return Validate.Struct(v)
}

// FieldErrors maps the failing fields of a validation error to their tag.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
