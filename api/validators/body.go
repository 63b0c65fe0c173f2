package validators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()

	invitationCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("invitation_code", validInvitationCode)
	_ = v.RegisterValidation("team_action", validTeamAction)
	return v
}

// validInvitationCode accepts blank input (solo entries send none) or the
// eight character token issued when a team is created.
func validInvitationCode(fl validator.FieldLevel) bool {
	code := strings.TrimSpace(fl.Field().String())
	return code == "" || invitationCodePattern.MatchString(code)
}

func validTeamAction(fl validator.FieldLevel) bool {
	action := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	if action == "" {
		return true
	}
	_, err := enums.ParseTeamAction(action)
	return err == nil
}

func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	case "uuid":
		return "must be a valid uuid"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "invitation_code":
		return "must be an 8 character invitation code"
	case "team_action":
		return "must be create or join"
	}
	return "is invalid"
}
