package serverutils

import (
	"errors"
	"fmt"

	"rizal-chat-be/internal/pkg/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct tags and reports the first offending field
// as a validation failure, before any mutation happens.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			field := errs[0]
			return apperrors.Validation(fmt.Sprintf("field '%s' failed on '%s'", field.Field(), field.Tag()))
		}
		return apperrors.Validation(err.Error())
	}
	return nil
}
