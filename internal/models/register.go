package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterForm holds the fields a caller collects for account registration
type RegisterForm struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Username    string `json:"username" validate:"required"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,max=32"`
	Name        string `json:"name,omitempty"`
}

// ValidationError lists the registration fields that failed validation
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid registration form: %s", strings.Join(e.Fields, ", "))
}

// Validate checks required fields and formats. It returns a *ValidationError
// naming every offending field.
func (f RegisterForm) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate registration form: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Fields: fields}
}

// RequestBody builds the registration payload: required fields always,
// optional fields only when present
func (f RegisterForm) RequestBody() map[string]string {
	body := map[string]string{
		"email":     f.Email,
		"password":  f.Password,
		"username":  f.Username,
		"full_name": f.FullName,
	}
	if f.PhoneNumber != "" {
		body["phone_number"] = f.PhoneNumber
	}
	if f.Name != "" {
		body["name"] = f.Name
	}
	return body
}
