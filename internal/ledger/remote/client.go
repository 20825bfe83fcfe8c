// Package remote adapts the HTTP API back into the ledger.Service interface
// so CLI tools talk to a running server through the same contract the
// in-process stores implement.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finai.app/internal/intent"
	"finai.app/internal/ledger"
)

// Client is an HTTP/JSON ledger client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given base URL. An empty token disables the
// Authorization header, matching servers running without auth.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ObtainToken requests a device token from the server and stores it for
// subsequent calls.
func (c *Client) ObtainToken(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token", nil, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

var _ ledger.Service = (*Client)(nil)

type listTransactionsEnvelope struct {
	Items []ledger.Transaction `json:"items"`
}

type listBoxesEnvelope struct {
	Items []ledger.Box `json:"items"`
}

func (c *Client) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	var env listTransactionsEnvelope
	if err := c.do(ctx, http.MethodGet, "/v1/transactions", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

func (c *Client) AddTransaction(ctx context.Context, draft ledger.Draft) (ledger.Transaction, error) {
	var tx ledger.Transaction
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", draft, &tx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListBoxes(ctx context.Context) ([]ledger.Box, error) {
	var env listBoxesEnvelope
	if err := c.do(ctx, http.MethodGet, "/v1/boxes", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

func (c *Client) CreateBox(ctx context.Context, draft ledger.BoxDraft) (ledger.Box, error) {
	var box ledger.Box
	if err := c.do(ctx, http.MethodPost, "/v1/boxes", draft, &box); err != nil {
		return ledger.Box{}, err
	}
	return box, nil
}

func (c *Client) UpdateBox(ctx context.Context, id string, patch ledger.BoxPatch) error {
	return c.do(ctx, http.MethodPatch, "/v1/boxes/"+url.PathEscape(id), patch, nil)
}

func (c *Client) DeleteBox(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/boxes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Projection(ctx context.Context) (ledger.Projection, error) {
	var proj ledger.Projection
	if err := c.do(ctx, http.MethodGet, "/v1/projection", nil, &proj); err != nil {
		return ledger.Projection{}, err
	}
	return proj, nil
}

func (c *Client) Profile(ctx context.Context) (ledger.Profile, error) {
	var profile ledger.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/profile", nil, &profile); err != nil {
		return ledger.Profile{}, err
	}
	return profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch ledger.ProfilePatch) (ledger.Profile, error) {
	var profile ledger.Profile
	if err := c.do(ctx, http.MethodPatch, "/v1/profile", patch, &profile); err != nil {
		return ledger.Profile{}, err
	}
	return profile, nil
}

// MessageReply is the assistant answer for a free-text message.
type MessageReply struct {
	Advice   string           `json:"advice"`
	Proposal *intent.Proposal `json:"proposal,omitempty"`
}

// Message sends user text to the assistant endpoint.
func (c *Client) Message(ctx context.Context, text string) (MessageReply, error) {
	var reply MessageReply
	req := map[string]string{"message": text}
	if err := c.do(ctx, http.MethodPost, "/v1/assistant/message", req, &reply); err != nil {
		return MessageReply{}, err
	}
	return reply, nil
}

// Confirm applies a proposal the user accepted.
func (c *Client) Confirm(ctx context.Context, p intent.Proposal) (intent.Outcome, error) {
	var out intent.Outcome
	if err := c.do(ctx, http.MethodPost, "/v1/assistant/confirm", p, &out); err != nil {
		return intent.Outcome{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

// decodeError maps error responses back onto the ledger sentinels so
// errors.Is works the same against a remote server as an in-process store.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = ledger.ErrInvalidArgument
	case http.StatusForbidden:
		sentinel = ledger.ErrQuotaExceeded
	case http.StatusNotFound:
		sentinel = ledger.ErrNotFound
	case http.StatusConflict:
		sentinel = ledger.ErrInsufficientFunds
	case http.StatusServiceUnavailable:
		sentinel = ledger.ErrStorageUnavailable
	default:
		return fmt.Errorf("remote: server error (%d): %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
