// Package validation configures the struct validator used for checkout
// drafts and order requests.
package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	alphaSpaceRegex = regexp.MustCompile(`^[A-Za-z ]+$`)
	digitsRegex     = regexp.MustCompile(`^[0-9]+$`)
	// 2-digit state code, PAN (5 letters, 4 digits, 1 letter), entity
	// number, the literal Z, checksum character.
	gstinRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// New returns a validator that names fields by their JSON tag and has the
// store's custom tags registered:
//
//	alphaspace  letters and spaces only
//	digits      ASCII digits only
//	gstin       15-character GST identification number
//	notblank    not empty once surrounding whitespace is trimmed
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("alphaspace", matches(alphaSpaceRegex))
	_ = v.RegisterValidation("digits", matches(digitsRegex))
	_ = v.RegisterValidation("gstin", matches(gstinRegex))
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// jsonFieldName reports fields by their JSON name so errors line up with
// the request body.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
