package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matchday-app/matchday-go/notifications"
	"github.com/matchday-app/matchday-go/session"
	"github.com/rs/zerolog"
)

const (
	eventRegister     = "register"
	eventNotification = "notification"
)

type registerMessage struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

type serverEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Service owns the realtime notification channel and follows the session
// lifecycle: when a user id appears it attaches a channel registered for that
// user, when the id changes or disappears the previous channel is fully torn
// down first. At most one channel is open per process, and no event is
// delivered for a session that has already ended.
type Service struct {
	url          string
	dial         Dialer
	store        *notifications.Store
	log          zerolog.Logger
	writeTimeout time.Duration

	lock        sync.Mutex
	current     *channel
	unsubscribe func()
}

type channel struct {
	userID string
	conn   Conn
	cancel context.CancelFunc
	done   chan struct{}
}

type ServiceOption func(*Service)

func WithDialer(dial Dialer) ServiceOption {
	return func(s *Service) {
		s.dial = dial
	}
}

func WithServiceLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func WithWriteTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.writeTimeout = timeout
	}
}

func NewService(url string, store *notifications.Store, options ...ServiceOption) *Service {
	s := &Service{
		url:          url,
		dial:         WebsocketDialer,
		store:        store,
		log:          zerolog.Nop(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Init subscribes the service to session state. The current snapshot is
// applied immediately, so a restored session attaches its channel without
// waiting for the next transition.
func (s *Service) Init(manager *session.Manager) {
	s.unsubscribe = manager.Subscribe(func(snapshot session.Snapshot) {
		s.apply(snapshot.UserID())
	})
}

// Teardown detaches the channel and stops following the session.
func (s *Service) Teardown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.apply("")
}

func (s *Service) apply(userID string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current != nil && s.current.userID == userID {
		return
	}
	if s.current != nil {
		s.detachLocked()
	}
	if userID == "" {
		return
	}
	s.attachLocked(userID)
}

// detachLocked cancels event dispatch, closes the transport, and waits for
// the read loop to exit, so the transport is fully released before any new
// channel opens.
func (s *Service) detachLocked() {
	ch := s.current
	s.current = nil
	ch.cancel()
	if err := ch.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("realtime close")
	}
	<-ch.done
	s.log.Info().Str("userID", ch.userID).Msg("realtime channel detached")
}

func (s *Service) attachLocked(userID string) {
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.dial(ctx, s.url)
	if err != nil {
		cancel()
		s.log.Error().Err(err).Str("userID", userID).Msg("realtime dial failed")
		return
	}
	writeCtx, writeCancel := context.WithTimeout(ctx, s.writeTimeout)
	err = conn.WriteJSON(writeCtx, registerMessage{Event: eventRegister, UserID: userID})
	writeCancel()
	if err != nil {
		_ = conn.Close()
		cancel()
		s.log.Error().Err(err).Str("userID", userID).Msg("realtime register failed")
		return
	}

	ch := &channel{
		userID: userID,
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.current = ch
	go s.readLoop(ctx, ch)
	s.log.Info().Str("userID", userID).Msg("realtime channel attached")
}

func (s *Service) readLoop(ctx context.Context, ch *channel) {
	defer close(ch.done)
	for {
		var event serverEvent
		if err := ch.conn.ReadJSON(ctx, &event); err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("realtime channel closed unexpectedly")
			}
			return
		}
		if ctx.Err() != nil {
			// Detached while the read was in flight; the session has ended
			// and the event must not be processed.
			return
		}
		if event.Event != eventNotification {
			continue
		}

		var record notifications.Notification
		if err := json.Unmarshal(event.Data, &record); err != nil {
			s.log.Warn().Err(err).Msg("unreadable notification event")
			continue
		}
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
		s.store.Upsert(record)
	}
}
