package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// API is the REST client for the message service.
type API struct {
	base  string
	token string
	http  *http.Client
}

func NewAPI(base string) *API {
	return &API{base: base, http: http.DefaultClient}
}

// Token returns the bearer token obtained by Login.
func (a *API) Token() string { return a.token }

// Login obtains a token for userID and keeps it for subsequent calls.
func (a *API) Login(ctx context.Context, userID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := a.do(ctx, http.MethodPost, "/login", map[string]string{"user_id": userID}, http.StatusOK, &resp)
	if err != nil {
		return err
	}
	a.token = resp.Token
	return nil
}

// ListUsers fetches the sidebar user list.
func (a *API) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := a.do(ctx, http.MethodGet, "/messages/users", nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListConversation fetches the full conversation with peerID.
func (a *API) ListConversation(ctx context.Context, peerID string) ([]*model.Message, error) {
	var msgs []*model.Message
	if err := a.do(ctx, http.MethodGet, "/messages/"+peerID, nil, http.StatusOK, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send creates a message addressed to peerID and returns the persisted
// record.
func (a *API) Send(ctx context.Context, peerID, text string, images []string) (*model.Message, error) {
	body := map[string]any{"text": text, "images": images}
	var msg model.Message
	if err := a.do(ctx, http.MethodPost, "/messages/send/"+peerID, body, http.StatusCreated, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Revoke asks the server to tombstone the message.
func (a *API) Revoke(ctx context.Context, messageID int64) error {
	path := "/messages/delete/" + strconv.FormatInt(messageID, 10)
	return a.do(ctx, http.MethodDelete, path, nil, http.StatusOK, nil)
}

func (a *API) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
