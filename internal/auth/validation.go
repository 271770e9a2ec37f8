package auth

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgRequired  = "The %s field is required."
	msgString    = "The %s field must be a string."
	msgEmail     = "The %s field must be a valid email address."
	msgMin       = "The %s field must be at least %s characters."
	msgMax       = "The %s field must not be greater than %s characters."
	msgConfirmed = "The %s field confirmation does not match."
	msgUnique    = "The %s has already been taken."
	msgInvalid   = "The %s field is invalid."
)

// ValidationError はフィールドごとの入力エラーをまとめたものです。
// フィールドは最初にエラーが追加された順序を保持します。
type ValidationError struct {
	Errors map[string][]string
	fields []string
}

// Add はフィールドにメッセージを追加します。
func (e *ValidationError) Add(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string][]string)
	}
	if _, ok := e.Errors[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.Errors[field] = append(e.Errors[field], message)
}

// Has はフィールドにエラーがあるかを返します。
func (e *ValidationError) Has(field string) bool {
	return len(e.Errors[field]) > 0
}

// Len はメッセージの総数です。
func (e *ValidationError) Len() int {
	n := 0
	for _, msgs := range e.Errors {
		n += len(msgs)
	}
	return n
}

// Error は最初のメッセージと残りの件数を返します。
func (e *ValidationError) Error() string {
	if len(e.fields) == 0 {
		return "The given data was invalid."
	}
	first := e.Errors[e.fields[0]][0]
	rest := e.Len() - 1
	switch {
	case rest == 1:
		return first + " (and 1 more error)"
	case rest > 1:
		return fmt.Sprintf("%s (and %d more errors)", first, rest)
	default:
		return first
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct は struct タグのルールを検証し、失敗を verr に追加します。
// 検証以外のエラー（不正な引数など）はそのまま返します。
func checkStruct(in any, verr *ValidationError) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return nil
}

// checkConfirmed は確認入力の不一致を記録します。min などで失敗済みのフィールドにも追加します。
// 未入力なら required のメッセージだけにします。
func checkConfirmed(verr *ValidationError, field, value, confirmation string) {
	if value == "" {
		return
	}
	msg := fmt.Sprintf(msgConfirmed, fieldLabel(field))
	for _, m := range verr.Errors[field] {
		if m == msg {
			return
		}
	}
	if validate.VarWithValue(value, confirmation, "eqfield") != nil {
		verr.Add(field, msg)
	}
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf(msgRequired, label)
	case "email":
		return fmt.Sprintf(msgEmail, label)
	case "min":
		return fmt.Sprintf(msgMin, label, fe.Param())
	case "max":
		return fmt.Sprintf(msgMax, label, fe.Param())
	case "eqfield":
		return fmt.Sprintf(msgConfirmed, label)
	default:
		return fmt.Sprintf(msgInvalid, label)
	}
}

func fieldLabel(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
