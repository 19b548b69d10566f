package users

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// ID is a user or role identifier. The API may send it as a JSON number or
// string; it is always held as a string.
type ID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// User is a user profile record.
type User struct {
	ID           ID           `json:"id,omitempty" yaml:"id,omitempty"`
	FirstName    string       `json:"firstName" yaml:"firstName" validate:"required,max=50"`
	LastName     string       `json:"lastName" yaml:"lastName" validate:"required,max=50"`
	FathersName  string       `json:"fathersName" yaml:"fathersName" validate:"required,max=50"`
	MothersName  string       `json:"mothersName" yaml:"mothersName" validate:"required,max=50"`
	MobileNumber string       `json:"mobileNumber" yaml:"mobileNumber" validate:"required"`
	Email        string       `json:"email" yaml:"email" validate:"required,email"`
	Gender       string       `json:"gender" yaml:"gender" validate:"required"`
	DateOfBirth  string       `json:"dateOfBirth" yaml:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Address      string       `json:"address" yaml:"address" validate:"required"`
	Role         string       `json:"role,omitempty" yaml:"role,omitempty"`
	Education    []Education  `json:"education" yaml:"education" validate:"dive"`
	Experience   []Experience `json:"experience" yaml:"experience" validate:"dive"`
	CreatedAt    string       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	ModifiedAt   string       `json:"modifiedAt,omitempty" yaml:"modifiedAt,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Education is one entry of a user's education history.
type Education struct {
	CollegeName string `json:"collegeName" yaml:"collegeName" validate:"required,max=50"`
	Location    string `json:"location" yaml:"location" validate:"required,max=50"`
	StartDate   string `json:"startDate" yaml:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" yaml:"endDate" validate:"required,datetime=2006-01-02"`
}

// Experience is one entry of a user's work history.
type Experience struct {
	CompanyName string `json:"companyName" yaml:"companyName" validate:"required,max=50"`
	Location    string `json:"location" yaml:"location" validate:"required,max=50"`
	Role        string `json:"role" yaml:"role" validate:"required,max=50"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" validate:"max=250"`
	StartDate   string `json:"startDate" yaml:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" yaml:"endDate" validate:"required,datetime=2006-01-02"`
}

// Role is an assignable role.
type Role struct {
	ID       ID     `json:"id" yaml:"id"`
	RoleName string `json:"roleName" yaml:"roleName"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			e := sl.Current().Interface().(Education)
			if endsBeforeStart(e.StartDate, e.EndDate) {
				sl.ReportError(e.EndDate, "endDate", "EndDate", "endafterstart", "")
			}
		}, Education{})
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			e := sl.Current().Interface().(Experience)
			if endsBeforeStart(e.StartDate, e.EndDate) {
				sl.ReportError(e.EndDate, "endDate", "EndDate", "endafterstart", "")
			}
		}, Experience{})
	})
	return validate
}

func endsBeforeStart(start, end string) bool {
	s, err1 := time.Parse(DateLayout, start)
	e, err2 := time.Parse(DateLayout, end)
	if err1 != nil || err2 != nil {
		return false
	}
	return e.Before(s)
}

// ValidationError lists the fields of a record that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is a single failed rule.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid user: " + strings.Join(msgs, "; ")
}

// Validate checks u against the form rules used when creating and editing
// users.
func (u *User) Validate() error {
	err := getValidator().Struct(u)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   strings.TrimPrefix(fe.Namespace(), "User."),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "endafterstart":
		return "must be after start date"
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}
