package api

import (
	"context"
	"net/http"

	"github.com/example/visitor-desk/internal/application"
)

var _ application.AuthAPI = (*Client)(nil)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (application.LoginResult, error) {
	var out struct {
		AccessToken string   `json:"access_token"`
		User        *userDTO `json:"user"`
	}
	_, err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
		public: true,
	}, &out)
	if err != nil {
		return application.LoginResult{}, err
	}
	result := application.LoginResult{Token: out.AccessToken}
	if out.User != nil {
		result.Profile = out.User.profile()
	}
	return result, nil
}

// Register creates a backend account.
func (c *Client) Register(ctx context.Context, params application.RegisterUserParams) error {
	_, err := c.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/register",
		body: map[string]string{
			"username":   params.Username,
			"email":      params.Email,
			"password":   params.Password,
			"department": params.Department,
			"role":       string(params.Role),
		},
		public: true,
	}, nil)
	return err
}

// ListUsers returns every account. The backend allows this for administrators only.
func (c *Client) ListUsers(ctx context.Context) ([]application.Profile, error) {
	var out struct {
		Users []userDTO `json:"users"`
	}
	if _, err := c.do(ctx, call{op: "list_users", method: http.MethodGet, path: "/auth/users"}, &out); err != nil {
		return nil, err
	}
	profiles := make([]application.Profile, 0, len(out.Users))
	for _, u := range out.Users {
		profiles = append(profiles, u.profile())
	}
	return profiles, nil
}
