package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Envelope is the uniform response shape: success responses carry data
// and message, errors carry message plus an error detail outside
// production.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendSuccess writes a 200 envelope with data and message.
func SendSuccess(w http.ResponseWriter, data any, message string) {
	SendSuccessStatus(w, http.StatusOK, data, message)
}

// SendSuccessStatus writes a success envelope with an explicit status.
func SendSuccessStatus(w http.ResponseWriter, statusCode int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendErrorResponse writes an error envelope. The underlying error is
// attached only outside production; validator errors expand into a
// field-to-tag detail map.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := Envelope{Success: false, Message: message}

	if verrs, ok := err.(validator.ValidationErrors); ok {
		resp.Details = make(map[string]string)
		for _, ve := range verrs {
			resp.Details[ve.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", ve.Tag())
		}
	} else if err != nil && viper.GetString("env") != "production" {
		resp.Error = err.Error()
	}

	json.NewEncoder(w).Encode(resp)
}
