package controllers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// validationError converts validator output into a 400 response body listing
// the offending fields.
func validationError(err error) fiber.Map {
	var fields []string
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range errs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
	}
	return fiber.Map{
		"error":   "validation_failed",
		"message": "Request validation failed",
		"fields":  fields,
	}
}
