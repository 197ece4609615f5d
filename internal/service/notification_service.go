package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"task-tracker/internal/model"
)

var ErrQueueFull = errors.New("notification queue full")

const drainTimeout = 5 * time.Second

// Sender delivers a rendered message to a Telegram chat.
type Sender interface {
	SendText(chatID int64, text string) error
}

// ChangeNotifier is told about every task mutation.
type ChangeNotifier interface {
	TaskChanged(actor model.User, task model.Task, change string)
}

type outgoing struct {
	chatID int64
	text   string
}

// NotificationService fans task changes out to the people involved in a
// task. Messages are queued and sent by one worker under a rate limit.
type NotificationService struct {
	log     zerolog.Logger
	limiter *rate.Limiter
	queue   chan outgoing

	mu     sync.RWMutex
	sender Sender

	wg sync.WaitGroup
}

func NewNotificationService(ratePerSec, queueSize int, log zerolog.Logger) *NotificationService {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationService{
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		queue:   make(chan outgoing, queueSize),
	}
}

// SetSender wires the transport once it exists.
func (s *NotificationService) SetSender(sender Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// SetRate changes the send rate; burst follows the rate.
func (s *NotificationService) SetRate(perSec int) {
	if perSec <= 0 {
		return
	}
	s.limiter.SetLimit(rate.Limit(perSec))
	s.limiter.SetBurst(perSec)
}

// Start runs the send loop until ctx is done, then flushes what is still
// queued within drainTimeout. Wait blocks until it exits.
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.drain(nil)
				return
			case msg := <-s.queue:
				if err := s.limiter.Wait(ctx); err != nil {
					s.drain(&msg)
					return
				}
				s.deliver(msg)
			}
		}
	}()
}

func (s *NotificationService) drain(pending *outgoing) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		var msg outgoing
		if pending != nil {
			msg, pending = *pending, nil
		} else {
			select {
			case msg = <-s.queue:
			default:
				return
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Int("dropped", 1+len(s.queue)).Msg("notifications dropped on shutdown")
			return
		}
		s.deliver(msg)
	}
}

func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliver(msg outgoing) {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	if sender == nil {
		s.log.Warn().Int64("chat", msg.chatID).Msg("notification dropped: no sender")
		return
	}
	if err := sender.SendText(msg.chatID, msg.text); err != nil {
		s.log.Warn().Err(err).Int64("chat", msg.chatID).Msg("send notification")
	}
}

// TaskChanged queues a message for everyone involved in task except actor.
func (s *NotificationService) TaskChanged(actor model.User, task model.Task, change string) {
	text := formatChange(actor, task, change)
	for _, user := range Recipients(task, actor.ID) {
		if err := s.enqueue(outgoing{chatID: user.TelegramID, text: text}); err != nil {
			s.log.Warn().Err(err).Uint("task", task.ID).Uint("user", user.ID).Msg("notification dropped")
		}
	}
}

func (s *NotificationService) enqueue(msg outgoing) error {
	select {
	case s.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Recipients returns assignee, partners and informees of task without
// duplicates, skipping actorID and users without a chat.
func Recipients(task model.Task, actorID uint) []model.User {
	candidates := make([]model.User, 0, 1+len(task.Partners)+len(task.Informees))
	candidates = append(candidates, task.Assignee)
	candidates = append(candidates, task.Partners...)
	candidates = append(candidates, task.Informees...)

	seen := make(map[uint]struct{}, len(candidates))
	var out []model.User
	for _, u := range candidates {
		if u.ID == 0 || u.ID == actorID || u.TelegramID == 0 {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

func formatChange(actor model.User, task model.Task, change string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 <b>#%d</b> %s\n", task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(html.EscapeString(change))
	sb.WriteString(fmt.Sprintf("\n<i>by %s</i>", html.EscapeString(actor.DisplayName())))
	return sb.String()
}
