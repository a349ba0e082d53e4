package wialon

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// SentinelUnavailable is returned by Get when no session could be acquired.
// It is never cached and never sent to the remote by callers that check it.
const SentinelUnavailable = "----"

const defaultSessionTTL = 5 * time.Minute

// LoginClient is the slice of Client the session manager needs.
type LoginClient interface {
	Login(ctx context.Context, user, password string) (LoginResult, error)
}

// SessionManager caches the platform session id with a fixed ttl and persists
// it across restarts. Acquisition is serialized: concurrent callers block on
// the in-flight login and all receive its result.
type SessionManager struct {
	logger   *log.Logger
	client   LoginClient
	user     string
	password string
	ttl      time.Duration
	file     string
	now      func() time.Time

	mu         sync.Mutex
	sid        string
	acquiredAt time.Time
	restored   bool
}

// NewSessionManager constructs a manager. file may be empty to disable
// persistence.
func NewSessionManager(logger *log.Logger, client LoginClient, user, password, file string, ttl time.Duration) (*SessionManager, error) {
	if client == nil {
		return nil, errors.New("session manager: nil client")
	}
	if user == "" {
		return nil, errors.New("session manager: empty user")
	}
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{
		logger:   logger,
		client:   client,
		user:     user,
		password: password,
		ttl:      ttl,
		file:     file,
		now:      time.Now,
	}, nil
}

// Get returns a session id, logging in when the cached one is absent or has
// aged past the ttl. On login failure it returns SentinelUnavailable without
// caching; the next call retries.
func (m *SessionManager) Get(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.restored {
		m.restore()
		m.restored = true
	}
	if m.sid != "" && m.now().Sub(m.acquiredAt) < m.ttl {
		return m.sid
	}

	result, err := m.client.Login(ctx, m.user, m.password)
	if err != nil {
		m.logger.Printf("session manager: login failed: %v", err)
		return SentinelUnavailable
	}

	m.sid = result.SessionID
	m.acquiredAt = m.now()
	m.persist()
	return m.sid
}

// Invalidate drops the cached session so the next Get logs in again.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sid = ""
	m.acquiredAt = time.Time{}
}

type sessionFile struct {
	SID        string    `json:"sid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

func (m *SessionManager) restore() {
	if m.file == "" {
		return
	}
	data, err := os.ReadFile(m.file)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Printf("session manager: read %s: %v", m.file, err)
		}
		return
	}
	var stored sessionFile
	if err := json.Unmarshal(data, &stored); err != nil {
		m.logger.Printf("session manager: corrupt session file %s: %v", m.file, err)
		return
	}
	if stored.SID == "" || stored.SID == SentinelUnavailable {
		return
	}
	m.sid = stored.SID
	m.acquiredAt = stored.AcquiredAt
}

func (m *SessionManager) persist() {
	if m.file == "" {
		return
	}
	data, err := json.Marshal(sessionFile{SID: m.sid, AcquiredAt: m.acquiredAt})
	if err != nil {
		m.logger.Printf("session manager: encode session: %v", err)
		return
	}
	if err := os.WriteFile(m.file, data, 0o600); err != nil {
		m.logger.Printf("session manager: write %s: %v", m.file, err)
	}
}
