package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

// maxBodyBytes caps JSON request bodies; the largest legitimate payload is a
// 200-line availability batch.
const maxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures under the JSON name the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}()

var fieldMessages = map[string]func(param string) string{
	"required": func(string) string { return "is required" },
	"min":      func(p string) string { return "must be at least " + p },
	"gte":      func(p string) string { return "must be at least " + p },
	"max":      func(p string) string { return "must be at most " + p },
	"lte":      func(p string) string { return "must be at most " + p },
	"gt":       func(p string) string { return "must be greater than " + p },
	"oneof":    func(p string) string { return fmt.Sprintf("must be one of [%s]", p) },
}

// DecodeJSONBody decodes exactly one JSON object into dest and runs its
// validate tags. The body is drained so the connection can be reused.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *pkgerrors.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		message := "is invalid"
		if describe, ok := fieldMessages[fe.Tag()]; ok {
			message = describe(fe.Param())
		}
		details[fe.Field()] = message
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
