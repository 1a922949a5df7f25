package lead

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// freeMailDomains are consumer mailbox providers rejected by the
// business-email policy.
var freeMailDomains = map[string]struct{}{}

// competitorDomains belong to vendors whose staff should not enter the
// funnel as leads.
var competitorDomains = map[string]struct{}{}

func init() {
	for _, d := range []string{
		"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
		"icloud.com", "mail.com", "protonmail.com", "zoho.com", "yandex.com",
		"gmx.com", "live.com", "msn.com", "me.com", "comcast.net",
		"att.net", "verizon.net", "sbcglobal.net", "bellsouth.net", "cox.net",
		"earthlink.net", "charter.net", "optonline.net", "frontier.com",
		"yahoo.co.uk", "hotmail.co.uk", "googlemail.com", "rocketmail.com",
		"ymail.com", "inbox.com", "mail.ru", "qq.com", "163.com", "126.com",
	} {
		freeMailDomains[d] = struct{}{}
	}
	for _, d := range []string{
		"sparesfinder.com", "partsbase.com", "mroinsider.com",
		"tracegains.com", "oniqua.com", "gep.com", "zycus.com",
	} {
		competitorDomains[d] = struct{}{}
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("businessemail", func(fl validator.FieldLevel) bool {
		return BusinessEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("jobfunction", func(fl validator.FieldLevel) bool {
		return ValidJobFunction(fl.Field().String())
	})
	return v
}

// ValidationError carries field-level problems keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid contact: " + strings.Join(parts, "; ")
}

// Normalize trims whitespace and lower-cases the email.
func (c Contact) Normalize() Contact {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Company = strings.TrimSpace(c.Company)
	c.JobFunction = strings.TrimSpace(c.JobFunction)
	return c
}

// Validate checks c, returning a *ValidationError when any field fails.
func (c Contact) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "email":
		return "Invalid email address"
	case "businessemail":
		return "Please use your business email address"
	case "jobfunction":
		return "Please select your function"
	default:
		return "Invalid value"
	}
}

// Domain returns the lower-cased domain part of an email address.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// BusinessEmail reports whether the address is on neither the free-mail nor
// the competitor deny-list.
func BusinessEmail(email string) bool {
	domain := Domain(email)
	if domain == "" {
		return false
	}
	if _, blocked := freeMailDomains[domain]; blocked {
		return false
	}
	if _, blocked := competitorDomains[domain]; blocked {
		return false
	}
	return true
}

// ValidJobFunction reports whether fn is one of JobFunctions.
func ValidJobFunction(fn string) bool {
	for _, known := range JobFunctions {
		if known == fn {
			return true
		}
	}
	return false
}
