package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/giftfutures/internal/model"
)

// Validator проверяет структуры запросов по тегам validate.
// Кроме встроенных правил поддерживает теги ton_address и decimal.
type Validator struct {
	validate *validator.Validate
}

// NewValidator создаёт валидатор с зарегистрированными доменными правилами.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("ton_address", func(fl validator.FieldLevel) bool {
		return IsValidTONAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := ParseDecimal(fl.Field().String())
		return err == nil
	})

	return &Validator{validate: v}
}

// Struct проверяет структуру. Нарушения возвращаются как model.ErrInvalidInput с перечнем полей.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return model.InvalidInputf("%s", strings.Join(fields, "; "))
}
