package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rebellion/internal/game"
	"rebellion/internal/storage"
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	log      logrus.FieldLogger
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, log logrus.FieldLogger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Create makes a new session and persists it.
func (m *Manager) Create(gameType string) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	gameType = g.Info().Name
	code := generateCode()
	s := NewSession(code, gameType, g)
	s.log = m.log.WithField("session", code)
	s.record = m.recordEvent
	if err := m.store.CreateSession(code, gameType, string(s.Settings)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	s.log.WithField("game", gameType).Info("session created")
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Save persists a session's status and settings, and its results once the
// match is over.
func (m *Manager) Save(s *Session) error {
	s.mu.RLock()
	status := s.Status
	settings := string(s.Settings)
	var results []game.PlayerResult
	if s.Match != nil && s.Match.IsOver() {
		results = s.Match.Results()
	}
	s.mu.RUnlock()

	if err := m.store.UpdateSessionStatus(s.Code, string(status)); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	if err := m.store.UpdateSessionSettings(s.Code, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if len(results) == 0 {
		return nil
	}
	rows := make([]storage.ResultRow, len(results))
	for i, r := range results {
		rows[i] = storage.ResultRow{PlayerID: r.PlayerID, Rank: r.Rank, Score: r.Score}
	}
	if err := m.store.SaveResults(s.Code, s.GameType, rows); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

// History returns the recorded events of a session.
func (m *Manager) History(code string, afterID int64) ([]storage.EventRow, error) {
	return m.store.ListEvents(code, afterID)
}

// Stats returns a player's aggregated results.
func (m *Manager) Stats(playerID string) (storage.PlayerStats, error) {
	return m.store.PlayerStats(playerID)
}

func (m *Manager) recordEvent(code string, e game.Event) {
	_, err := m.store.AppendEvent(storage.EventRow{
		SessionCode: code,
		Seq:         e.Seq,
		Type:        e.Type,
		Player:      e.Player,
		Text:        e.Text,
	})
	if err != nil {
		m.log.WithError(err).WithField("session", code).Warn("record event")
	}
}

// Stored lists persisted sessions, newest first. An empty status lists all.
func (m *Manager) Stored(status string) ([]storage.SessionRow, error) {
	return m.store.ListSessions(status)
}

// Leave removes a player from a waiting session and drops the session once
// nobody is left.
func (m *Manager) Leave(s *Session, playerID string) error {
	left, err := s.RemovePlayer(playerID)
	if err != nil {
		return err
	}
	if left == 0 {
		m.log.WithField("session", s.Code).Info("last player left")
		m.Remove(s.Code)
	}
	return nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(code); err != nil {
		m.log.WithError(err).WithField("session", code).Warn("delete session")
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxAge)
		}
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := len(s.Players) == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if !finished && !empty {
			continue
		}
		row, err := m.store.GetSession(code)
		if err != nil {
			delete(m.sessions, code)
			continue
		}
		if now.Sub(row.CreatedAt) > maxAge || empty {
			m.log.WithField("session", code).Info("cleaning up session")
			if err := m.store.DeleteSession(code); err != nil {
				m.log.WithError(err).WithField("session", code).Warn("delete session")
			}
			delete(m.sessions, code)
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}
