// Package session establishes the identity that owns the profile document.
//
// A Manager signs in with a token when one is configured and anonymously
// otherwise, and tells listeners about every identity transition. Listeners
// receive nil on sign-out or failed sign-in.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gippro/learnsync/internal/model"
)

// Provider performs one sign-in attempt
type Provider interface {
	SignIn(ctx context.Context) (*model.Identity, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (*model.Identity, error)

func (f ProviderFunc) SignIn(ctx context.Context) (*model.Identity, error) {
	return f(ctx)
}

// Listener observes identity transitions
type Listener func(identity *model.Identity)

// Manager owns the current identity
type Manager struct {
	provider Provider
	logger   *slog.Logger

	mu        sync.Mutex
	current   *model.Identity
	listeners map[int]Listener
	nextID    int

	// notifyMu keeps transitions delivered in the order they happened
	notifyMu sync.Mutex
}

// NewManager creates a session manager for provider
func NewManager(provider Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider:  provider,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Establish signs in and notifies listeners. On failure the current identity
// is cleared and the error wraps model.ErrAuthUnavailable.
func (m *Manager) Establish(ctx context.Context) (*model.Identity, error) {
	identity, err := m.provider.SignIn(ctx)
	if err == nil && (identity == nil || identity.UID == "") {
		err = fmt.Errorf("provider returned no identity")
	}
	if err != nil {
		m.logger.Error("sign-in failed", "error", err)
		m.transition(nil)
		return nil, fmt.Errorf("%w: %v", model.ErrAuthUnavailable, err)
	}

	m.logger.Info("session established", "uid", identity.UID, "provider", identity.Provider)
	m.transition(identity)
	return identity, nil
}

// SignOut clears the identity and notifies listeners
func (m *Manager) SignOut(ctx context.Context) {
	m.logger.Info("session signed out")
	m.transition(nil)
}

// Current returns a copy of the current identity, or nil
func (m *Manager) Current() *model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	id := *m.current
	return &id
}

// OnChange registers fn for identity transitions and returns a function that
// removes it
func (m *Manager) OnChange(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) transition(identity *model.Identity) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if identity != nil {
		cp := *identity
		m.current = &cp
	} else {
		m.current = nil
	}
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		if identity == nil {
			l(nil)
			continue
		}
		cp := *identity
		l(&cp)
	}
}
