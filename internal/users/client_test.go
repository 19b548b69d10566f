package users

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userconsole/internal/gateway"
)

type staticSession struct{}

func (staticSession) AccessToken() string                     { return "T" }
func (staticSession) Refresh(context.Context) (string, error) { return "", nil }
func (staticSession) Logout(context.Context) (string, error)  { return "", nil }

type recorded struct {
	method string
	path   string
	query  string
	ctype  string
	body   []byte
}

type mockAPI struct {
	mu       sync.Mutex
	requests []recorded
	handler  http.HandlerFunc
}

func (m *mockAPI) last() recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *mockAPI) {
	t.Helper()
	m := &mockAPI{handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type"), body})
		m.mu.Unlock()
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		m.handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewClient(gateway.New(staticSession{}, gateway.WithBaseURL(server.URL))), m
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func validUser() *User {
	return &User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		FathersName:  "George",
		MothersName:  "Anne",
		MobileNumber: "+44 20 7946 0000",
		Email:        "ada@example.com",
		Gender:       "female",
		DateOfBirth:  "1815-12-10",
		Address:      "London",
		Education: []Education{{
			CollegeName: "Home",
			Location:    "London",
			StartDate:   "1820-01-01",
			EndDate:     "1832-01-01",
		}},
	}
}

func TestList_BareArray(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `[{"id":1,"firstName":"Ada"},{"id":"b2","firstName":"Grace"}]`))

	got, err := c.List(context.Background(), "a b&c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ID("1"), got[0].ID)
	assert.Equal(t, ID("b2"), got[1].ID)

	req := m.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, UsersPath, req.path)
	assert.Equal(t, "search=a+b%26c", req.query)
}

func TestList_DataWrapper(t *testing.T) {
	c, _ := newClient(t, respond(http.StatusOK, `{"data":[{"id":7,"firstName":"Ada"}]}`))

	got, err := c.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ID("7"), got[0].ID)
}

func TestList_EmptyWrapper(t *testing.T) {
	c, _ := newClient(t, respond(http.StatusOK, `{}`))

	got, err := c.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGet(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `{"id":42,"firstName":"Ada","lastName":"Lovelace"}`))

	u, err := c.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.FullName())
	assert.Equal(t, UsersPath+"/42", m.last().path)

	_, err = c.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestGet_APIError(t *testing.T) {
	c, _ := newClient(t, respond(http.StatusNotFound, `{"message":"not found"}`))

	_, err := c.Get(context.Background(), "9")
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestCreate(t *testing.T) {
	c, m := newClient(t, respond(http.StatusCreated, `{"id":5,"firstName":"Ada","lastName":"Lovelace"}`))

	u, err := c.Create(context.Background(), validUser())
	require.NoError(t, err)
	assert.Equal(t, ID("5"), u.ID)

	req := m.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "application/json", req.ctype)
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(req.body, &sent))
	assert.Equal(t, "ada@example.com", sent["email"])
	assert.Equal(t, "1815-12-10", sent["dateOfBirth"])
	assert.NotContains(t, sent, "id")
}

func TestCreate_EmptyResponseReturnsInput(t *testing.T) {
	c, _ := newClient(t, respond(http.StatusNoContent, ``))

	in := validUser()
	u, err := c.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, u)
}

func TestCreate_InvalidNeverSent(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `{}`))

	u := validUser()
	u.Email = "not-an-email"
	_, err := c.Create(context.Background(), u)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, m.requests)
}

func TestUpdate(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, ``))

	u, err := c.Update(context.Background(), "42", validUser())
	require.NoError(t, err)
	assert.Equal(t, ID("42"), u.ID)

	req := m.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, UsersPath+"/42", req.path)
}

func TestDelete(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `{"message":"deleted"}`))

	require.NoError(t, c.Delete(context.Background(), "42"))
	req := m.last()
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, UsersPath+"/42", req.path)

	assert.Error(t, c.Delete(context.Background(), ""))
}

func TestRoles(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `[{"id":1,"roleName":"ADMIN"},{"id":2,"roleName":"USER"}]`))

	roles, err := c.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Role{{ID: "1", RoleName: "ADMIN"}, {ID: "2", RoleName: "USER"}}, roles)
	assert.Equal(t, RolesPath, m.last().path)
}

func TestImport(t *testing.T) {
	var (
		m                *mockAPI
		gotName, gotData string
	)
	var c *Client
	c, m = newClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The recorder consumed the body; parse the recorded copy.
		rec := m.last()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(rec.body)))
		req.Header.Set("Content-Type", rec.ctype)
		f, hdr, err := req.FormFile(ImportField)
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			gotName, gotData = hdr.Filename, string(data)
		}
		respond(http.StatusOK, `{"message":"3 users imported"}`)(w, r)
	})

	csv := []byte("firstName,lastName\nAda,Lovelace\n")
	res, err := c.Import(context.Background(), "/tmp/people.CSV", csv)
	require.NoError(t, err)
	assert.Equal(t, "3 users imported", res.Message)
	assert.Equal(t, "people.CSV", gotName)
	assert.Equal(t, string(csv), gotData)
	assert.True(t, strings.HasPrefix(m.last().ctype, "multipart/form-data; boundary="))
}

func TestImport_RejectsNonCSV(t *testing.T) {
	c, m := newClient(t, respond(http.StatusOK, `{}`))

	_, err := c.Import(context.Background(), "people.xlsx", []byte("x"))
	assert.ErrorIs(t, err, ErrNotCSV)
	assert.Empty(t, m.requests)
}

func TestImport_DefaultMessage(t *testing.T) {
	c, _ := newClient(t, respond(http.StatusOK, ``))

	res, err := c.Import(context.Background(), "people.csv", []byte("a\n"))
	require.NoError(t, err)
	assert.Equal(t, "Users imported successfully", res.Message)
}

func TestExport(t *testing.T) {
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "id,firstName\n1,Ada\n")
	})

	data, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id,firstName\n1,Ada\n", string(data))
	assert.Equal(t, ExportPath, m.last().path)
}
