package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/renderers"
)

// Validator wraps struct-tag validation with the capture domain's
// custom rules registered.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("response_type", validateResponseType)
	validate.RegisterValidation("media_kind", validateMediaKind)
	validate.RegisterValidation("input_action", validateInputAction)
	validate.RegisterValidation("prep_time", validatePrepTime)
	validate.RegisterValidation("time_limit", validateTimeLimit)
	validate.RegisterValidation("seek_position", validateSeekPosition)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateResponseType(fl validator.FieldLevel) bool {
	validTypes := []models.ResponseType{
		models.ResponseSelection,
		models.ResponseText,
		models.ResponseStructuredData,
		models.ResponseAudioRecording,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateMediaKind(fl validator.FieldLevel) bool {
	validKinds := []models.MediaKind{
		models.MediaImage,
		models.MediaAudio,
		models.MediaVideo,
		models.MediaDocument,
	}

	value := fl.Field().String()
	for _, validKind := range validKinds {
		if string(validKind) == value {
			return true
		}
	}
	return false
}

func validateInputAction(fl validator.FieldLevel) bool {
	validActions := []renderers.Action{
		renderers.ActionSelect,
		renderers.ActionToggle,
		renderers.ActionText,
		renderers.ActionBlank,
		renderers.ActionStopRecording,
		renderers.ActionReRecord,
		renderers.ActionPlay,
		renderers.ActionPause,
		renderers.ActionSeek,
	}

	value := fl.Field().String()
	for _, validAction := range validActions {
		if string(validAction) == value {
			return true
		}
	}
	return false
}

func validatePrepTime(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v >= 0 && v <= 600
}

func validateTimeLimit(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v >= 5 && v <= 3600
}

func validateSeekPosition(fl validator.FieldLevel) bool {
	return fl.Field().Float() >= 0
}
