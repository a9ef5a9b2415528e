// Package backend is a typed client for the ordering REST API.
//
// Every call is made on behalf of a CredentialSource: either a bearer token or
// the guest headers are sent, never both. A 401 on an authenticated call triggers
// exactly one token refresh and one retry.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"xquisito-tap/internal/domain"
)

const (
	headerGuestID     = "x-guest-id"
	headerTableNumber = "x-table-number"
)

// Credentials is the transport identity attached to one request.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	GuestID      string
	TableNumber  string
}

// CredentialSource supplies credentials and receives refreshed tokens.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
	StoreTokens(ctx context.Context, tokens domain.Tokens) error
}

// APIError is a failure reported by the backend, either as a non-2xx status or success=false.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("backend %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client holds the connection settings shared by every Requester.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// As scopes the client to one credential source. A nil source sends no identity headers.
func (c *Client) As(src CredentialSource) *Requester {
	return &Requester{client: c, src: src}
}

// Requester issues calls for a single identity.
type Requester struct {
	client *Client
	src    CredentialSource
}

func (r *Requester) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return r.do(ctx, http.MethodGet, path, nil, out)
}

func (r *Requester) post(ctx context.Context, path string, body, out any) error {
	return r.do(ctx, http.MethodPost, path, body, out)
}

func (r *Requester) put(ctx context.Context, path string, body, out any) error {
	return r.do(ctx, http.MethodPut, path, body, out)
}

func (r *Requester) patch(ctx context.Context, path string, body, out any) error {
	return r.do(ctx, http.MethodPatch, path, body, out)
}

func (r *Requester) delete(ctx context.Context, path string, out any) error {
	return r.do(ctx, http.MethodDelete, path, nil, out)
}

func (r *Requester) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = raw
	}

	creds, err := r.credentials(ctx)
	if err != nil {
		return err
	}

	status, env, err := r.send(ctx, method, path, payload, creds)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && creds.AccessToken != "" {
		refreshed, rerr := r.refresh(ctx, creds)
		if rerr != nil {
			r.client.logger.Warn("backend: refresh failed", zap.String("path", path), zap.Error(rerr))
			return domain.ErrSessionExpired
		}
		status, env, err = r.send(ctx, method, path, payload, refreshed)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return domain.ErrSessionExpired
		}
	}
	return decode(status, env, out)
}

func (r *Requester) credentials(ctx context.Context) (Credentials, error) {
	if r.src == nil {
		return Credentials{}, nil
	}
	creds, err := r.src.Credentials(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	return creds, nil
}

func (r *Requester) refresh(ctx context.Context, creds Credentials) (Credentials, error) {
	if creds.RefreshToken == "" {
		return Credentials{}, errors.New("no refresh token")
	}
	body, _ := json.Marshal(map[string]string{"refresh_token": creds.RefreshToken})
	status, env, err := r.send(ctx, http.MethodPost, "/auth/refresh", body, Credentials{})
	if err != nil {
		return Credentials{}, err
	}
	var tokens domain.Tokens
	if err := decode(status, env, &tokens); err != nil {
		return Credentials{}, err
	}
	if tokens.AccessToken == "" {
		return Credentials{}, errors.New("refresh returned no access token")
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = creds.RefreshToken
	}
	if r.src != nil {
		if err := r.src.StoreTokens(ctx, tokens); err != nil {
			return Credentials{}, fmt.Errorf("store refreshed tokens: %w", err)
		}
	}
	return Credentials{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (r *Requester) send(ctx context.Context, method, path string, payload []byte, creds Credentials) (int, envelope, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.client.baseURL+path, rdr)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	applyCredentials(req, creds)

	resp, err := r.client.http.Do(req)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, envelope{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			env = envelope{Message: strings.TrimSpace(string(raw))}
		}
	}
	return resp.StatusCode, env, nil
}

// applyCredentials sends exactly one identity mode. A bearer token always wins over guest headers.
func applyCredentials(req *http.Request, creds Credentials) {
	switch {
	case creds.AccessToken != "":
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	case creds.GuestID != "":
		req.Header.Set(headerGuestID, creds.GuestID)
		if creds.TableNumber != "" {
			req.Header.Set(headerTableNumber, creds.TableNumber)
		}
	}
}

func decode(status int, env envelope, out any) error {
	if status < 200 || status > 299 || (env.Success != nil && !*env.Success) {
		apiErr := &APIError{Status: status, Message: env.Message}
		if env.Error != nil {
			apiErr.Type = env.Error.Type
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
