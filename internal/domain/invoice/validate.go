package invoice

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"fieldledger/internal/core/apperror"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func lineValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateItems rejects malformed line items before they reach the ledger.
// The returned error is a VALIDATION_ERROR whose details map field paths to
// the failed rule.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return apperror.NewValidation("invoice must have at least one line item")
	}

	fields := make(map[string]any)
	for k, item := range items {
		prefix := fmt.Sprintf("items[%d]", k)
		collect(fields, prefix, lineValidator().Struct(item))

		if item.UnitPrice.IsNegative() {
			fields[prefix+".unitPrice"] = "gte=0"
		}
		if details := deref(item.Details); details != nil {
			if details.Kind() != item.Kind {
				fields[prefix+".details"] = fmt.Sprintf("does not match type %s", item.Kind)
				continue
			}
			collect(fields, prefix+".details", lineValidator().Struct(details))
		}
	}

	if len(fields) == 0 {
		return nil
	}
	err := apperror.NewValidation("invalid line items")
	for f, rule := range fields {
		err.WithDetail(f, rule)
	}
	return err
}

func collect(fields map[string]any, prefix string, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields[prefix] = err.Error()
		return
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[prefix+"."+fe.Field()] = rule
	}
}
