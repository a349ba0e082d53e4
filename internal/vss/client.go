package vss

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	loginPath = "/vss/user/apiLogin.action"

	// statusOK is the success code of the video subsystem API.
	statusOK = 10000
)

// Credentials is one authenticated session with the video subsystem.
type Credentials struct {
	PID   string `json:"pid"`
	Token string `json:"token"`
}

// Valid reports whether the credentials are usable. The sentinel value
// "----" marks a failed acquisition.
func (c Credentials) Valid() bool {
	return c.PID != "" && c.Token != "" && c.PID != SentinelUnavailable && c.Token != SentinelUnavailable
}

// SentinelUnavailable is returned in both fields when login fails.
const SentinelUnavailable = "----"

// Client talks to the video subsystem HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("vss client: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   *struct {
		Token string `json:"token"`
		PID   string `json:"pid"`
	} `json:"data"`
}

// Login authenticates with an MD5-hashed password and returns session
// credentials.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	sum := md5.Sum([]byte(password))
	body, err := json.Marshal(loginRequest{
		Username: username,
		Password: hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return Credentials{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("vss login: %w", err)
	}
	defer resp.Body.Close()

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Credentials{}, fmt.Errorf("vss login: decode response: %w", err)
	}
	if decoded.Status != statusOK || decoded.Data == nil {
		msg := decoded.Msg
		if msg == "" {
			msg = fmt.Sprintf("status %d", decoded.Status)
		}
		return Credentials{}, fmt.Errorf("vss login: %s", msg)
	}
	return Credentials{PID: decoded.Data.PID, Token: decoded.Data.Token}, nil
}
