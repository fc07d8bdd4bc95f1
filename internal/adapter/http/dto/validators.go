package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"marketplace-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("money", validateMoney)
		_ = v.RegisterValidation("signed_money", validateSignedMoney)
		_ = v.RegisterValidation("rate", validateRate)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, dot and colon.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateMoney accepts a positive decimal string up to domain.MaxAmount.
// Precision is checked by the ledger.
func validateMoney(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl.Field().String())
	return ok && d.IsPositive() && d.LessThanOrEqual(domain.MaxAmount)
}

// validateSignedMoney accepts a non-zero decimal string whose magnitude is at most domain.MaxAmount.
func validateSignedMoney(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl.Field().String())
	return ok && !d.IsZero() && d.Abs().LessThanOrEqual(domain.MaxAmount)
}

// validateRate accepts a decimal string within [0, 1] with at most six places.
func validateRate(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl.Field().String())
	return ok && domain.IsValidRate(d)
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 32 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDecimal parses a field that already passed a money/rate validator.
func ParseDecimal(s string) decimal.Decimal {
	d, _ := parseDecimal(s)
	return d
}

// SanitizeStruct trims whitespace on every exported string field (including
// *string) of a struct pointer. Fields tagged sanitize:"html" are also HTML-escaped.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		escape := rt.Field(i).Tag.Get("sanitize") == "html"
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String(), escape))
		case reflect.Ptr:
			if !f.IsNil() && f.Elem().Kind() == reflect.String {
				f.Elem().SetString(sanitize(f.Elem().String(), escape))
			}
		}
	}
}

func sanitize(s string, escape bool) string {
	s = strings.TrimSpace(s)
	if escape {
		s = html.EscapeString(s)
	}
	return s
}
