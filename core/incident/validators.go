package incident

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
)

var (
	severityTag  = "severity"
	severityText = "must be one of: low, medium, high"

	statusTag  = "incidentstatus"
	statusText = "must be one of: active, reviewing, resolved"
)

// InitValidators registers the incident validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(severityTag, core.OneOfValidation(Severities...))
	core.RegisterCustomTranslation(validate, translator, severityTag, severityText)

	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(Statuses...))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
