package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
)

var (
	statusTag  = "attendancestatus"
	statusText = "must be one of: present, absent, late"
)

// InitValidators registers the attendance validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(Statuses...))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
