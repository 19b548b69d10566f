package users

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`{"id":12}`, "12"},
		{`{"id":"abc"}`, "abc"},
		{`{"id":null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var r Role
		require.NoError(t, json.Unmarshal([]byte(tt.in), &r), tt.in)
		assert.Equal(t, tt.want, r.ID, tt.in)
	}

	var r Role
	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &r))
}

func TestUser_ValidateOK(t *testing.T) {
	assert.NoError(t, validUser().Validate())
}

func fieldsOf(err error) map[string]string {
	out := map[string]string{}
	if verr, ok := err.(*ValidationError); ok {
		for _, f := range verr.Fields {
			out[f.Field] = f.Message
		}
	}
	return out
}

func TestUser_ValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *User)
		field  string
		msg    string
	}{
		{"missing first name", func(u *User) { u.FirstName = "" }, "firstName", "is required"},
		{"long last name", func(u *User) { u.LastName = strings.Repeat("x", 51) }, "lastName", "must be at most 50 characters"},
		{"bad email", func(u *User) { u.Email = "nope" }, "email", "must be a valid email address"},
		{"bad dob", func(u *User) { u.DateOfBirth = "10/12/1815" }, "dateOfBirth", "must be a date formatted YYYY-MM-DD"},
		{"education missing college", func(u *User) { u.Education[0].CollegeName = "" }, "education[0].collegeName", "is required"},
		{
			"education ends before start",
			func(u *User) { u.Education[0].EndDate = "1819-01-01" },
			"education[0].endDate", "must be after start date",
		},
		{
			"experience description too long",
			func(u *User) {
				u.Experience = []Experience{{
					CompanyName: "Analytical Engines",
					Location:    "London",
					Role:        "Programmer",
					Description: strings.Repeat("d", 251),
					StartDate:   "1842-01-01",
					EndDate:     "1843-01-01",
				}}
			},
			"experience[0].description", "must be at most 250 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mutate(u)
			err := u.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.msg, fieldsOf(err)[tt.field], "errors: %v", err)
		})
	}
}

func TestUser_SameStartAndEndAllowed(t *testing.T) {
	u := validUser()
	u.Education[0].EndDate = u.Education[0].StartDate
	assert.NoError(t, u.Validate())
}

func TestValidationError_Message(t *testing.T) {
	u := validUser()
	u.FirstName = ""
	u.Email = "x"
	err := u.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user: ")
	assert.Contains(t, err.Error(), "firstName: is required")
	assert.Contains(t, err.Error(), "email: must be a valid email address")
}

func makeUsers(n int) []User {
	out := make([]User, n)
	for i := range out {
		out[i].ID = ID(fmt.Sprint(i + 1))
	}
	return out
}

func TestPaginate(t *testing.T) {
	all := makeUsers(23)

	p := Paginate(all, 1, 0)
	assert.Len(t, p.Items, DefaultPerPage)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 23, p.Count)
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p = Paginate(all, 3, 10)
	require.Len(t, p.Items, 3)
	assert.Equal(t, ID("21"), p.Items[0].ID)
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())

	p = Paginate(all, 99, 10)
	assert.Equal(t, 3, p.Number, "clamped to last page")

	p = Paginate(all, -1, 10)
	assert.Equal(t, 1, p.Number, "clamped to first page")
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 2, 10)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.Total)
	assert.False(t, p.HasNext())
}
