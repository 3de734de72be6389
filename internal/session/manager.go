// Package session owns the wallet connection and the signing capability.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"voting-token-client/internal/contract"
	"voting-token-client/internal/domain"
	"voting-token-client/internal/log"
	"voting-token-client/internal/mirror"
	"voting-token-client/internal/reader"
	"voting-token-client/internal/wallet"
)

// Session is a read-only view of the connected account.
type Session struct {
	Account  string `json:"account"`
	Username string `json:"username,omitempty"`
	Admin    bool   `json:"admin"`
}

// Manager connects to the wallet, holds the session and owns the mirror
// lifecycle: populated on connect, cleared on disconnect.
type Manager struct {
	provider wallet.Provider
	voting   *contract.Voting
	reader   *reader.Reader

	// refreshMu lets Disconnect wait for in-flight refreshes before it
	// clears the mirror.
	refreshMu sync.RWMutex

	mu       sync.RWMutex
	cap      *Capability
	username string
	admin    bool
}

// NewManager creates a disconnected manager. provider may be nil, in which
// case Connect fails with wallet.ErrNoProvider.
func NewManager(provider wallet.Provider, voting *contract.Voting, rd *reader.Reader) *Manager {
	return &Manager{provider: provider, voting: voting, reader: rd}
}

// Connect requests account access, derives the admin flag and loads the
// initial snapshot. The session stays connected if only the snapshot load
// fails; that error is returned as *domain.SnapshotError.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		return wallet.ErrNoProvider
	}
	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: no account authorized", domain.ErrUserRejected)
	}
	account := accounts[0]
	c := newCapability(m.provider, account)
	ctx = log.WithLogField(ctx, "account", account.String())

	admin := false
	if owner, err := m.voting.Owner(ctx, c); err != nil {
		log.L(ctx).WithError(err).Warn("Owner check failed")
	} else {
		admin = strings.EqualFold(owner.String(), account.String())
	}
	username, err := m.voting.Username(ctx, c, account)
	if err != nil {
		log.L(ctx).WithError(err).Warn("Username lookup failed")
	}

	m.refreshMu.Lock()
	m.mu.Lock()
	switched := m.cap != nil && !strings.EqualFold(m.cap.Account().String(), account.String())
	if m.cap != nil {
		m.cap.revoke()
	}
	m.cap = c
	m.admin = admin
	m.username = username
	m.mu.Unlock()
	// The mirror belongs to the previous account until the first refresh.
	if switched {
		m.reader.Store().Clear()
	}
	m.refreshMu.Unlock()

	log.L(ctx).WithFields(logrus.Fields{
		"admin":    admin,
		"username": username,
	}).Info("Wallet connected")

	_, err = m.Refresh(ctx)
	return err
}

// Disconnect ends the session and empties the mirror. The contracts are
// not touched.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.cap != nil {
		m.cap.revoke()
	}
	m.mu.Unlock()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	m.cap = nil
	m.admin = false
	m.username = ""
	m.mu.Unlock()

	m.reader.Store().Clear()
	log.L(context.Background()).Info("Wallet disconnected")
}

// Refresh reloads the mirror for the connected account.
func (m *Manager) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	m.refreshMu.RLock()
	defer m.refreshMu.RUnlock()

	c, err := m.Capability()
	if err != nil {
		return nil, err
	}
	account := c.Account()
	return m.reader.Refresh(ctx, c, &account)
}

// ReloadProfile re-reads the username of the connected account.
func (m *Manager) ReloadProfile(ctx context.Context) error {
	c, err := m.Capability()
	if err != nil {
		return err
	}
	name, err := m.voting.Username(ctx, c, c.Account())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cap == c {
		m.username = name
	}
	return nil
}

// Capability returns the signing capability, or domain.ErrNoSession.
func (m *Manager) Capability() (*Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cap == nil {
		return nil, domain.ErrNoSession
	}
	return m.cap, nil
}

// IsConnected reports whether an account is present.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cap != nil
}

// IsAdmin reports whether the connected account owns the voting contract.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.admin
}

// Account returns the connected account.
func (m *Manager) Account() (ethtypes.Address0xHex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cap == nil {
		return ethtypes.Address0xHex{}, false
	}
	return m.cap.Account(), true
}

// Username returns the registered display name, or "".
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username
}

// Session returns the current session, or nil when disconnected.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cap == nil {
		return nil
	}
	return &Session{Account: m.cap.Account().String(), Username: m.username, Admin: m.admin}
}

// Mirror returns the store populated by this session.
func (m *Manager) Mirror() *mirror.Store {
	return m.reader.Store()
}

// Voting returns the voting contract binding.
func (m *Manager) Voting() *contract.Voting {
	return m.voting
}
