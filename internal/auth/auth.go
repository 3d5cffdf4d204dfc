// Package auth owns the brokerage's OAuth access token: persistence to a
// local JSON file, skew-based pre-emptive refresh, and serialized refresh
// under concurrent callers (spec §4.7, §9 "shared-mutable session handle").
package auth

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Token is the persisted OAuth token file's shape (spec §6).
type Token struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func (t Token) valid() bool { return t.AccessToken != "" }

func (t Token) needsRefresh(skew time.Duration, now time.Time) bool {
	if !t.valid() {
		return true
	}

	return now.Add(skew).After(t.ExpiresAt)
}

// Refresher acquires a new token via the auth endpoint.
type Refresher func() (Token, error)

// Manager is the single-owner cell holding the current token. All mutation
// goes through refreshLocked, serialized by mu so a refresh never overlaps
// another in-flight refresh.
type Manager struct {
	mu       sync.Mutex
	path     string
	skew     time.Duration
	refresh  Refresher
	token    Token
	logger   *logger.Logger
	refreshN int // number of refreshes performed; exposed for tests verifying spec §8 invariant 7
}

// NewManager constructs a Manager, loading any previously persisted token
// from path. A missing or malformed file is not fatal here — the first
// WithValidToken call will refresh.
func NewManager(path string, refreshSkew time.Duration, refresh Refresher, log *logger.Logger) *Manager {
	m := &Manager{path: path, skew: refreshSkew, refresh: refresh, logger: log}

	if tok, err := loadTokenFile(path); err == nil {
		m.token = tok
	}

	return m
}

// WithValidToken runs fn with a token guaranteed valid (refreshed if
// necessary) at the moment fn is invoked.
func (m *Manager) WithValidToken(fn func(token string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.needsRefresh(m.skew, time.Now()) {
		if err := m.refreshLocked(); err != nil {
			return err
		}
	}

	return fn(m.token.AccessToken)
}

// ForceRefresh refreshes unconditionally. Used by the resilience layer
// when a call response indicates the token expired mid-flight despite the
// skew guard (e.g. server clock drift).
func (m *Manager) ForceRefresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refreshLocked()
}

// RefreshCount returns the number of refreshes performed so far.
func (m *Manager) RefreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refreshN
}

func (m *Manager) refreshLocked() error {
	tok, err := m.refresh()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTokenRefreshFailed, err, "failed to refresh token")
	}

	m.token = tok
	m.refreshN++

	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	data, err := json.MarshalIndent(m.token, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeTokenRefreshFailed, err, "failed to marshal token")
	}

	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeTokenRefreshFailed, err, "failed to persist token file")
	}

	return nil
}

func loadTokenFile(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, err
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, errors.Wrap(errors.ErrCodeTokenRefreshFailed, err, "malformed token file")
	}

	return tok, nil
}
