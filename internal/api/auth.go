package api

import (
	"context"
	"net/http"

	"github.com/nlebedev/predictit/internal/model"
)

// Session is an issued credential plus the user it belongs to.
type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for a bearer token. The token is adopted
// by the client for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", body, &session); err != nil {
		return Session{}, err
	}
	c.token = session.AccessToken
	return session, nil
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	body := struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Name: name, Email: email, Password: password}
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", body, &session); err != nil {
		return Session{}, err
	}
	c.token = session.AccessToken
	return session, nil
}

// CurrentUser fetches the identity behind the held credential.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	if !c.Authenticated() {
		return model.User{}, ErrUnauthenticated
	}
	var user model.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}
