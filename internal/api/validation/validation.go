// Package validation checks request DTOs with go-playground/validator and
// reports failures keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
)

const (
	notBlankTag  = "notblank"
	orgRoleTag   = "org_role"
	lmsNameTag   = "lms_name"
	orgDomainTag = "org_domain"
	activityTag  = "activity_type"
)

var domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9.\-]{0,61}[a-z0-9])?$`)

type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func New() *Validator {
	v := validator.New()

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(orgRoleTag, func(fl validator.FieldLevel) bool {
		return policy.IsKnownRole(fl.Field().String())
	})
	_ = v.RegisterValidation(lmsNameTag, func(fl validator.FieldLevel) bool {
		switch models.LmsName(fl.Field().String()) {
		case models.LmsCanvas, models.LmsMoodle, models.LmsGoogleClassroom:
			return true
		}
		return false
	})
	_ = v.RegisterValidation(orgDomainTag, func(fl validator.FieldLevel) bool {
		return domainRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation(activityTag, func(fl validator.FieldLevel) bool {
		switch models.ActivityType(fl.Field().String()) {
		case "", models.ActivityTypeH5P, models.ActivityTypeLink, models.ActivityTypeDocument:
			return true
		}
		return false
	})

	val := &Validator{validate: v, trans: trans}
	val.registerMessages(map[string]string{
		notBlankTag:  "{0} cannot be blank",
		orgRoleTag:   "{0} must be one of admin, course_creator, member",
		lmsNameTag:   "{0} must be one of canvas, moodle, google_classroom",
		orgDomainTag: "{0} may only contain lowercase letters, digits, dots and hyphens",
		activityTag:  "{0} must be one of h5p, link, document",
	})
	return val
}

func (v *Validator) registerMessages(messages map[string]string) {
	for tag, text := range messages {
		tag, text := tag, text
		_ = v.validate.RegisterTranslation(tag, v.trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field())
				return msg
			},
		)
	}
}

// Struct validates s and returns field messages, or nil when s is valid.
func (v *Validator) Struct(s interface{}) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = fe.Translate(v.trans)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read "statements[0].verb.id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}
