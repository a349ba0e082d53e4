package vss

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

const defaultCredentialTTL = 15 * time.Minute

// LoginClient is the part of Client the auth service needs.
type LoginClient interface {
	Login(ctx context.Context, username, password string) (Credentials, error)
}

// AuthService caches video subsystem credentials in memory and on disk.
// Credentials older than the TTL are reacquired; a failed login yields the
// sentinel value without poisoning the cache, so the next call retries.
type AuthService struct {
	logger   *log.Logger
	client   LoginClient
	username string
	password string
	ttl      time.Duration
	file     string
	now      func() time.Time

	mu         sync.Mutex
	creds      Credentials
	acquiredAt time.Time
	restored   bool
}

// AuthOption configures the service.
type AuthOption func(*AuthService)

// WithCredentialTTL overrides the cache lifetime.
func WithCredentialTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCredentialFile persists credentials across restarts.
func WithCredentialFile(path string) AuthOption {
	return func(s *AuthService) { s.file = path }
}

// NewAuthService constructs an auth service.
func NewAuthService(logger *log.Logger, client LoginClient, username, password string, opts ...AuthOption) (*AuthService, error) {
	if client == nil {
		return nil, errors.New("vss auth: nil client")
	}
	if username == "" {
		return nil, errors.New("vss auth: empty username")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &AuthService{
		logger:   logger,
		client:   client,
		username: username,
		password: password,
		ttl:      defaultCredentialTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type credentialFile struct {
	PID        string    `json:"pid"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// GetCredentials returns cached credentials, reacquiring them when the TTL
// has passed. On login failure it returns the sentinel in both fields.
func (s *AuthService) GetCredentials(ctx context.Context) Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.restored {
		s.restoreLocked()
		s.restored = true
	}
	if s.creds.Valid() && s.now().Sub(s.acquiredAt) < s.ttl {
		return s.creds
	}

	creds, err := s.client.Login(ctx, s.username, s.password)
	if err != nil {
		s.logger.Printf("vss auth: login failed: %v", err)
		return Credentials{PID: SentinelUnavailable, Token: SentinelUnavailable}
	}
	s.creds = creds
	s.acquiredAt = s.now().UTC()
	s.persistLocked()
	return creds
}

func (s *AuthService) restoreLocked() {
	if s.file == "" {
		return
	}
	raw, err := os.ReadFile(s.file)
	if err != nil {
		return
	}
	var stored credentialFile
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Printf("vss auth: discarding corrupt credential file: %v", err)
		return
	}
	creds := Credentials{PID: stored.PID, Token: stored.Token}
	if !creds.Valid() {
		return
	}
	s.creds = creds
	s.acquiredAt = stored.AcquiredAt
}

func (s *AuthService) persistLocked() {
	if s.file == "" {
		return
	}
	raw, err := json.Marshal(credentialFile{
		PID:        s.creds.PID,
		Token:      s.creds.Token,
		AcquiredAt: s.acquiredAt,
	})
	if err != nil {
		return
	}
	if err := os.WriteFile(s.file, raw, 0o600); err != nil {
		s.logger.Printf("vss auth: persist credentials failed: %v", err)
	}
}
