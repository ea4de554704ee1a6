package validation

import (
	"fmt"
	"time"

	"futsal/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindings регистрирует пользовательские правила валидации в движке gin
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("slotdate", validSlotDate); err != nil {
		return fmt.Errorf("failed to register slotdate: %w", err)
	}
	return nil
}

// validSlotDate принимает даты в формате YYYY-MM-DD
func validSlotDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}
