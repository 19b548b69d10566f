// Package users is the REST client for user profiles, roles and CSV
// import/export. Every call goes through the authenticated gateway.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"userconsole/internal/gateway"
	"userconsole/pkg/logging"
)

// API paths.
const (
	UsersPath  = "/api/users"
	RolesPath  = "/api/roles"
	ImportPath = "/api/users/import"
	ExportPath = "/api/users/export"
)

// ImportField is the multipart form field carrying the CSV file.
const ImportField = "file"

// ErrNotCSV is returned by Import for files without a .csv extension.
var ErrNotCSV = errors.New("please select a valid CSV file")

// API is the subset of the gateway the client needs.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body gateway.Body, out interface{}) error
	Put(ctx context.Context, path string, body gateway.Body, out interface{}) error
	Delete(ctx context.Context, path string, out interface{}) error
	Download(ctx context.Context, path string) ([]byte, error)
}

// Client talks to the user management API.
type Client struct {
	api API
}

// NewClient creates a client using api for transport.
func NewClient(api API) *Client {
	return &Client{api: api}
}

// userList decodes either a bare array or an object with a data array.
type userList []User

func (l *userList) UnmarshalJSON(data []byte) error {
	var arr []User
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var wrapped struct {
		Data []User `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("unexpected user list shape: %w", err)
	}
	*l = wrapped.Data
	return nil
}

// List returns all users matching search. An empty search returns every user.
func (c *Client) List(ctx context.Context, search string) ([]User, error) {
	path := UsersPath + "?search=" + url.QueryEscape(search)
	var list userList
	if err := c.api.Get(ctx, path, &list); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	logging.Debug("Users", "Listed %d users (search=%q)", len(list), search)
	return list, nil
}

// Get fetches one user.
func (c *Client) Get(ctx context.Context, id ID) (*User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	var u User
	if err := c.api.Get(ctx, userPath(id), &u); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	return &u, nil
}

// Create validates u and creates it. The stored record is returned when the
// API echoes it back, otherwise u itself.
func (c *Client) Create(ctx context.Context, u *User) (*User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	out := &User{}
	if err := c.api.Post(ctx, UsersPath, gateway.JSON(u), out); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	logging.Audit("Users", "user_created", "id", string(out.ID))
	return orInput(out, u), nil
}

// Update validates u and replaces the record with the given id.
func (c *Client) Update(ctx context.Context, id ID, u *User) (*User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	out := &User{}
	if err := c.api.Put(ctx, userPath(id), gateway.JSON(u), out); err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}
	logging.Audit("Users", "user_updated", "id", string(id))
	res := orInput(out, u)
	if res.ID == "" {
		res.ID = id
	}
	return res, nil
}

// Delete removes the user with the given id.
func (c *Client) Delete(ctx context.Context, id ID) error {
	if id == "" {
		return errors.New("user id is required")
	}
	if err := c.api.Delete(ctx, userPath(id), nil); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	logging.Audit("Users", "user_deleted", "id", string(id))
	return nil
}

// Roles lists the assignable roles.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.api.Get(ctx, RolesPath, &roles); err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return roles, nil
}

// ImportResult is the API's answer to a CSV import.
type ImportResult struct {
	Message string `json:"message" yaml:"message"`
}

// Import uploads a CSV file. The payload is passed through untouched.
func (c *Client) Import(ctx context.Context, filename string, csv []byte) (*ImportResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, ErrNotCSV
	}
	body := gateway.Multipart(nil, gateway.File{
		Field:       ImportField,
		Name:        filepath.Base(filename),
		ContentType: "text/csv",
		Data:        csv,
	})
	res := &ImportResult{}
	if err := c.api.Post(ctx, ImportPath, body, res); err != nil {
		return nil, fmt.Errorf("failed to import CSV: %w", err)
	}
	if res.Message == "" {
		res.Message = "Users imported successfully"
	}
	logging.Audit("Users", "users_imported", "file", filepath.Base(filename), "bytes", len(csv))
	return res, nil
}

// Export downloads every user as CSV.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	data, err := c.api.Download(ctx, ExportPath)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	return data, nil
}

func userPath(id ID) string {
	return UsersPath + "/" + url.PathEscape(string(id))
}

func orInput(out, in *User) *User {
	if out.FirstName == "" && out.ID == "" {
		return in
	}
	return out
}
