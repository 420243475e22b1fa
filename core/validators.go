package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// NotBlankText is the message of the notblank validation tag.
const NotBlankText = "this field cannot be blank"

var (
	// custom validation tags & texts
	notBlankTag = "notblank"

	accessCodeTag   = "accesscode"
	accessCodeText  = "access code must be 4 letters or digits"
	accessCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)

	requiredTag  = "required"
	requiredText = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, NotBlankText)

	_ = validate.RegisterValidation(accessCodeTag, accessCodeValidation)
	RegisterCustomTranslation(validate, translator, accessCodeTag, accessCodeText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidateStruct validates `s`, converting any validator.ValidationErrors to a *ValidationError
// carrying translated per-field messages.
func ValidateStruct(validate *validator.Validate, translator ut.Translator, s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: fieldPath(vErr), Error: translate(vErr, translator)})
	}
	return NewValidationError(nil, flds...)
}

// TranslateValidationErrors converts validator errors to a field -> message map.
func TranslateValidationErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[fieldPath(vErr)] = translate(vErr, translator)
	}
	return fldErrs
}

// fieldPath drops the top level struct name from the error namespace (eg. "responses[0].answer").
func fieldPath(vErr validator.FieldError) string {
	ns := vErr.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return vErr.Field()
}

func translate(vErr validator.FieldError, translator ut.Translator) string {
	if translator == nil {
		return vErr.Error()
	}
	return vErr.Translate(translator)
}

// Custom Global Validators

// notBlankValidation rejects strings made of whitespace only.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func accessCodeValidation(fl validator.FieldLevel) bool {
	return accessCodeRegex.MatchString(fl.Field().String())
}
