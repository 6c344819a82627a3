package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mert/schoolhub/internal/app/models"
)

// RegisterCustomValidators installs domain validation rules on gin's binding
// engine. Called once at server setup.
func RegisterCustomValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("importtype", validImportType)
	}
}

// validImportType accepts the known roster kinds (students, teachers, staff)
func validImportType(fl validator.FieldLevel) bool {
	return models.ImportType(fl.Field().String()).Valid()
}
