package submission

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

var (
	dataURITag  = "datauri"
	dataURIText = "{0} must be a data URL"
)

// InitValidators registers the submission translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterCustomTranslation(validate, translator, dataURITag, dataURIText, true)
}
