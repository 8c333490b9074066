package exam

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

var (
	difficultyTag  = "difficulty"
	difficultyText = "difficulty must be one of easy, medium or hard"

	uniqueIDsTag  = "uniqueqids"
	uniqueIDsText = "question ids must be unique"
)

// InitValidators registers the exam validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	validate.RegisterStructValidation(examStructValidation, NewExam{}, UpdateExam{})
	core.RegisterCustomTranslation(validate, translator, uniqueIDsTag, uniqueIDsText)
}

func difficultyValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

func examStructValidation(sl validator.StructLevel) {
	switch ex := sl.Current().Interface().(type) {
	case NewExam:
		validateQuestionIDs(ex.Questions, sl)
	case UpdateExam:
		validateQuestionIDs(ex.Questions, sl)
	}
}

// validateQuestionIDs checks that provided question ids are not repeated.
func validateQuestionIDs(qs []NewQuestion, sl validator.StructLevel) {
	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			continue
		}
		if _, ok := seen[q.ID]; ok {
			sl.ReportError(qs, "questions", "Questions", uniqueIDsTag, "")
			return
		}
		seen[q.ID] = struct{}{}
	}
}
