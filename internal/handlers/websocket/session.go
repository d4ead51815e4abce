package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/voicegate/internal/domains/preferences"
	"github.com/xpanvictor/voicegate/internal/domains/voicegate"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/io/activity"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

var (
	ErrSendBufferFull = errors.New("websocket: send buffer full")
	errSessionClosed  = errors.New("websocket: session not active")
)

// Session is one client microphone. It is also the gate's signal sink: the
// peer reports readiness with a control message and signals are written back
// as rtc_meta events. Outgoing messages are queued and written by a single
// writer goroutine, so senders never wait on the socket.
type Session struct {
	SessionID   uuid.UUID
	Conn        *websocket.Conn
	ConnectedAt time.Time

	Processor   *voicegate.Processor
	Detector    *activity.EnergyDetector
	Preferences *preferences.Store
	cancel      context.CancelFunc

	logger     *Logger.Logger
	sampleRate int32
	lastActive time.Time
	IsActive   bool
	ready      bool
	mutex      sync.RWMutex

	send    chan WSMessage
	done    chan struct{}
	flushed chan struct{}
	pumping bool
}

// NewSession creates a new WebSocket session and starts its writer.
func NewSession(conn *websocket.Conn, sampleRate int32, logger *Logger.Logger) *Session {
	s := newSession(conn, sampleRate, logger)
	s.pumping = true
	go s.writePump()
	return s
}

func newSession(conn *websocket.Conn, sampleRate int32, logger *Logger.Logger) *Session {
	id := uuid.New()
	now := time.Now()
	return &Session{
		SessionID:   id,
		Conn:        conn,
		ConnectedAt: now,
		logger:      logger.With("session", id.String()),
		sampleRate:  sampleRate,
		lastActive:  now,
		IsActive:    true,
		send:        make(chan WSMessage, sendBuffer),
		done:        make(chan struct{}),
		flushed:     make(chan struct{}),
	}
}

func (s *Session) attach(proc *voicegate.Processor, det *activity.EnergyDetector, store *preferences.Store, cancel context.CancelFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Processor = proc
	s.Detector = det
	s.Preferences = store
	s.cancel = cancel
}

func (s *Session) components() (*voicegate.Processor, *activity.EnergyDetector, *preferences.Store) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Processor, s.Detector, s.Preferences
}

// Ready reports whether the peer has announced it can take stream signals.
func (s *Session) Ready() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.IsActive && s.ready
}

func (s *Session) SetReady(ready bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ready = ready
}

// Notify writes a gate signal to the peer.
func (s *Session) Notify(sig voicegate.Signal) {
	name := wireEventName(sig)
	if err := s.SendWebSocketMessage(MessageTypeRTCMeta, RTCMetaMessage{EventName: name}); err != nil {
		s.logger.Warnf("failed to send %s: %v", name, err)
		return
	}
	s.logger.Debugf("sent %s", name)
}

// SendWebSocketMessage queues a message for the client. It never blocks: a
// full queue drops the message with ErrSendBufferFull.
func (s *Session) SendWebSocketMessage(msgType MessageType, data interface{}) error {
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		SessionID: s.SessionID.String(),
		Timestamp: time.Now(),
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.IsActive {
		return errSessionClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// writePump is the only writer on Conn. After Close it flushes what was
// already queued, and it gives up on the first failed write.
func (s *Session) writePump() {
	defer close(s.flushed)
	for {
		select {
		case msg := <-s.send:
			if err := s.write(msg); err != nil {
				s.logger.Debugf("write failed: %v", err)
				return
			}
		case <-s.done:
			for {
				select {
				case msg := <-s.send:
					if err := s.write(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) write(msg WSMessage) error {
	if err := s.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.Conn.WriteJSON(msg)
}

// SendError sends an error message to the client
func (s *Session) SendError(code, message string) error {
	return s.SendWebSocketMessage(MessageTypeError, ErrorMessage{
		Code:    code,
		Message: message,
	})
}

func (s *Session) SampleRate() int32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sampleRate
}

func (s *Session) SetSampleRate(rate int32) {
	if rate <= 0 {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sampleRate = rate
}

// UpdateLastActive updates the last activity timestamp
func (s *Session) UpdateLastActive() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

// Close stops the gate and closes the connection. Safe to call more than once.
func (s *Session) Close() error {
	s.mutex.Lock()
	if !s.IsActive {
		s.mutex.Unlock()
		return nil
	}
	s.IsActive = false
	close(s.done)
	proc, cancel, pumping := s.Processor, s.cancel, s.pumping
	s.mutex.Unlock()

	// the processor may be mid-Notify waiting on our mutex, so stop it unlocked
	if proc != nil {
		proc.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if pumping {
		<-s.flushed
	}
	return s.Conn.Close()
}

// IsExpired checks if the session has expired based on inactivity
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.lastActive) > timeout
}

// IsAlive checks if the session is active
func (s *Session) IsAlive() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.IsActive
}

// LastActive returns the last activity timestamp
func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}
