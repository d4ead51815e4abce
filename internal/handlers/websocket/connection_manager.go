package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/voicegate/pkg/Logger"
)

const cleanupInterval = time.Minute

// ConnectionManager manages WebSocket connections and sessions
type ConnectionManager struct {
	logger         *Logger.Logger
	sessions       map[uuid.UUID]*Session
	mutex          sync.RWMutex
	cleanupTicker  *time.Ticker
	stopCleanup    chan struct{}
	closeOnce      sync.Once
	sessionTimeout time.Duration
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *Logger.Logger, sessionTimeout time.Duration) *ConnectionManager {
	if sessionTimeout <= 0 {
		sessionTimeout = 30 * time.Minute
	}
	cm := &ConnectionManager{
		logger:         logger,
		sessions:       make(map[uuid.UUID]*Session),
		stopCleanup:    make(chan struct{}),
		sessionTimeout: sessionTimeout,
	}

	cm.startCleanupRoutine()

	return cm
}

// RegisterConnection registers a new session
func (cm *ConnectionManager) RegisterConnection(session *Session) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.sessions[session.SessionID] = session
	cm.logger.Infof("Registered session %s", session.SessionID)
}

// UnregisterConnection removes and closes a session
func (cm *ConnectionManager) UnregisterConnection(sessionID uuid.UUID) {
	cm.mutex.Lock()
	session, exists := cm.sessions[sessionID]
	delete(cm.sessions, sessionID)
	cm.mutex.Unlock()

	if !exists {
		return
	}
	cm.logger.Infof("Unregistering session %s", sessionID)
	if err := session.Close(); err != nil {
		cm.logger.Debugf("Closing session %s: %v", sessionID, err)
	}
}

// GetSessionCount returns the number of active sessions
func (cm *ConnectionManager) GetSessionCount() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return len(cm.sessions)
}

func (cm *ConnectionManager) snapshot() []*Session {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	sessions := make([]*Session, 0, len(cm.sessions))
	for _, session := range cm.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (cm *ConnectionManager) startCleanupRoutine() {
	cm.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-cm.cleanupTicker.C:
				cm.cleanupExpiredSessions()
			case <-cm.stopCleanup:
				cm.cleanupTicker.Stop()
				return
			}
		}
	}()
}

func (cm *ConnectionManager) cleanupExpiredSessions() {
	expired := make([]uuid.UUID, 0)
	for _, session := range cm.snapshot() {
		if session.IsExpired(cm.sessionTimeout) {
			expired = append(expired, session.SessionID)
		}
	}

	for _, id := range expired {
		cm.logger.Infof("Cleaning up expired session %s", id)
		cm.UnregisterConnection(id)
	}

	if len(expired) > 0 {
		cm.logger.Infof("Cleaned up %d expired sessions", len(expired))
	}
}

// Close shuts down the connection manager and every session it holds
func (cm *ConnectionManager) Close() error {
	cm.closeOnce.Do(func() {
		close(cm.stopCleanup)
	})

	cm.mutex.Lock()
	sessions := cm.sessions
	cm.sessions = make(map[uuid.UUID]*Session)
	cm.mutex.Unlock()

	for id, session := range sessions {
		if err := session.Close(); err != nil {
			cm.logger.Errorf("Error closing session %s: %v", id, err)
		}
	}

	cm.logger.Infof("Connection manager closed")
	return nil
}

// GetStats returns connection manager statistics
func (cm *ConnectionManager) GetStats() map[string]interface{} {
	sessions := cm.snapshot()

	sessionStats := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		entry := map[string]interface{}{
			"session_id":   session.SessionID.String(),
			"connected_at": session.ConnectedAt,
			"last_active":  session.LastActive(),
			"is_active":    session.IsAlive(),
			"ready":        session.Ready(),
		}
		if proc, _, _ := session.components(); proc != nil {
			entry["gate"] = proc.Snapshot()
		}
		sessionStats = append(sessionStats, entry)
	}

	return map[string]interface{}{
		"active_sessions": len(sessions),
		"session_timeout": cm.sessionTimeout.String(),
		"sessions":        sessionStats,
	}
}
