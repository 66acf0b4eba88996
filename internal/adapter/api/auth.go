package api

import (
	"context"
	"net/http"
	"time"
)

// User is the profile returned by the auth endpoints.
type User struct {
	ID               string    `json:"id" yaml:"id"`
	Email            string    `json:"email" yaml:"email"`
	Name             string    `json:"name" yaml:"name"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	SubscriptionTier string    `json:"subscription_tier" yaml:"subscription_tier"`
}

type userResponse struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	CreatedAt        flexTime `json:"created_at"`
	SubscriptionTier string   `json:"subscription_tier"`
}

func (u userResponse) toUser() User {
	return User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		CreatedAt:        time.Time(u.CreatedAt),
		SubscriptionTier: u.SubscriptionTier,
	}
}

// Session is a bearer token and the user it belongs to.
type Session struct {
	Token string
	User  User
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

type profileUpdate struct {
	Name *string `json:"name,omitempty"`
}

type profileResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var resp authResponse
	req := registerRequest{Name: name, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	return &Session{Token: resp.AccessToken, User: resp.User.toUser()}, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp authResponse
	req := loginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp, false); err != nil {
		return nil, err
	}
	return &Session{Token: resp.AccessToken, User: resp.User.toUser()}, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp, true); err != nil {
		return nil, err
	}
	u := resp.toUser()
	return &u, nil
}

// UpdateMe changes the profile name.
func (c *Client) UpdateMe(ctx context.Context, name string) (*User, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodPut, "/api/auth/me", profileUpdate{Name: &name}, &resp, true); err != nil {
		return nil, err
	}
	u := resp.User.toUser()
	return &u, nil
}
