package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// envelope mirrors the server response body.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []string        `json:"errors"`
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
	Details []string
}

func (e *apiError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// client talks to the REST API with Bearer tokens. When a request fails with
// 401 and a refresh token is known, it refreshes once and retries.
type client struct {
	base string
	http *http.Client
	sess *session

	// onRotate persists a rotated session.
	onRotate func(*session) error
}

func newClient(base string, sess *session) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		sess: sess,
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) (string, error) {
	msg, err := c.send(ctx, method, path, in, out)
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized && c.canRefresh(path) {
		if rerr := c.refresh(ctx); rerr != nil {
			return "", err
		}
		return c.send(ctx, method, path, in, out)
	}
	return msg, err
}

func (c *client) canRefresh(path string) bool {
	return c.sess != nil && c.sess.RefreshToken != "" && !strings.HasPrefix(path, "/api/v1/auth/")
}

func (c *client) send(ctx context.Context, method, path string, in, out any) (string, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return "", err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sess != nil && c.sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return "", &apiError{Status: resp.StatusCode, Message: env.Message, Details: env.Errors}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Message, nil
}

// authTokens picks both tokens off a login/register/refresh response.
func authTokens(resp *http.Response) (access, refresh string) {
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "accessToken":
			access = ck.Value
		case "refreshToken":
			refresh = ck.Value
		}
	}
	return access, refresh
}

// authCall posts to an auth route and captures the session from Set-Cookie.
func (c *client) authCall(ctx context.Context, path string, in any) (user, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return user{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return user{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return user{}, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return user{}, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return user{}, &apiError{Status: resp.StatusCode, Message: env.Message, Details: env.Errors}
	}
	var data struct {
		User user `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return user{}, fmt.Errorf("decode data: %w", err)
	}
	access, refresh := authTokens(resp)
	c.sess = &session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    tokenExpiry(access),
		UserID:       data.User.ID,
		TenantID:     data.User.TenantID,
	}
	if c.onRotate != nil {
		if err := c.onRotate(c.sess); err != nil {
			return user{}, err
		}
	}
	return data.User, nil
}

func (c *client) register(ctx context.Context, username, email, password string) (user, error) {
	return c.authCall(ctx, "/api/v1/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	})
}

func (c *client) login(ctx context.Context, email, password string) (user, error) {
	return c.authCall(ctx, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
}

func (c *client) refresh(ctx context.Context) error {
	if c.sess == nil || c.sess.RefreshToken == "" {
		return errors.New("no refresh token (login required)")
	}
	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if _, err := c.send(ctx, http.MethodPost, "/api/v1/auth/refresh-token",
		map[string]string{"refreshToken": c.sess.RefreshToken}, &out); err != nil {
		return err
	}
	c.sess.AccessToken = out.AccessToken
	c.sess.RefreshToken = out.RefreshToken
	c.sess.ExpiresAt = tokenExpiry(out.AccessToken)
	if c.onRotate != nil {
		return c.onRotate(c.sess)
	}
	return nil
}

func (c *client) logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	return err
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
}

type tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

type note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type usage struct {
	Plan      string `json:"plan"`
	NotesUsed int    `json:"notesUsed"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type notePage struct {
	Notes       []note `json:"notes"`
	Total       int    `json:"totalNotes"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

func (c *client) me(ctx context.Context) (user, tenant, error) {
	var out struct {
		User   user   `json:"user"`
		Tenant tenant `json:"tenant"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &out)
	return out.User, out.Tenant, err
}

func (c *client) listNotes(ctx context.Context, page, limit int) (notePage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out notePage
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *client) getNote(ctx context.Context, id string) (note, error) {
	var out struct {
		Note note `json:"note"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/notes/"+url.PathEscape(id), nil, &out)
	return out.Note, err
}

func (c *client) createNote(ctx context.Context, title, content string) (note, usage, error) {
	var out struct {
		Note  note  `json:"note"`
		Usage usage `json:"usage"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/notes", map[string]string{"title": title, "content": content}, &out)
	return out.Note, out.Usage, err
}

func (c *client) updateNote(ctx context.Context, id, title, content string) (note, error) {
	var out struct {
		Note note `json:"note"`
	}
	_, err := c.do(ctx, http.MethodPut, "/api/v1/notes/"+url.PathEscape(id),
		map[string]string{"title": title, "content": content}, &out)
	return out.Note, err
}

func (c *client) deleteNote(ctx context.Context, id string) (usage, error) {
	var out struct {
		Usage usage `json:"usage"`
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/notes/"+url.PathEscape(id), nil, &out)
	return out.Usage, err
}

func (c *client) tenantUsage(ctx context.Context, tenantID string) (usage, error) {
	var out usage
	_, err := c.do(ctx, http.MethodGet, "/api/v1/tenants/"+url.PathEscape(tenantID)+"/usage", nil, &out)
	return out, err
}

func (c *client) upgrade(ctx context.Context, tenantID string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/tenants/"+url.PathEscape(tenantID)+"/upgrade", nil, nil)
}
