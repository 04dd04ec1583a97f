package validation

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	personNameRegex = regexp.MustCompile(`^[A-Za-z .'\-]+$`)
	placeNameRegex  = regexp.MustCompile(`^[A-Za-z .\-]+$`)
	gstinRegex      = regexp.MustCompile(`^[A-Za-z0-9]{15}$`)
	pincodeRegex    = regexp.MustCompile(`^[0-9]{6}$`)
	mobileRegex     = regexp.MustCompile(`^[0-9]{10}$`)
	emailRegex      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func validatePersonName(fl validator.FieldLevel) bool {
	return personNameRegex.MatchString(fl.Field().String())
}

func validatePlaceName(fl validator.FieldLevel) bool {
	return placeNameRegex.MatchString(fl.Field().String())
}

func validateGSTIN(fl validator.FieldLevel) bool {
	return gstinRegex.MatchString(fl.Field().String())
}

func validatePincode(fl validator.FieldLevel) bool {
	return pincodeRegex.MatchString(fl.Field().String())
}

func validateMobileStart(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && s[0] >= '6' && s[0] <= '9'
}

func validatePortalEmail(fl validator.FieldLevel) bool {
	return emailRegex.MatchString(fl.Field().String())
}

func validatePositive(fl validator.FieldLevel) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
	return err == nil && n > 0
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return "must include at least " + e.Param() + " item"
		}
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "len", "numeric":
		if isMobile(e) {
			return "must be exactly 10 digits"
		}
		return "must be exactly " + e.Param() + " characters"
	case "mobilestart":
		return "must start with 6, 7, 8, or 9"
	case "oneof":
		return "must be one of: " + e.Param()
	case "personname":
		return "may contain only letters, spaces, dots, apostrophes and hyphens"
	case "placename":
		return "may contain only letters, spaces, dots and hyphens"
	case "gstin":
		return "must be exactly 15 alphanumeric characters"
	case "pincode":
		return "must be exactly 6 digits"
	case "portalemail":
		return "must be a valid email address"
	case "positive":
		return "must be a positive number"
	default:
		return "is invalid"
	}
}

func isMobile(e validator.FieldError) bool {
	return e.Field() == "mobile" || strings.HasSuffix(e.Namespace(), ".mobile")
}
