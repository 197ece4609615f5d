package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"task-tracker/internal/model"
)

type captureSender struct {
	mu   sync.Mutex
	sent map[int64]string
	got  chan struct{}
}

func (c *captureSender) SendText(chatID int64, text string) error {
	c.mu.Lock()
	c.sent[chatID] = text
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func TestRecipients(t *testing.T) {
	t.Parallel()
	actor := model.User{ID: 1, TelegramID: 100}
	assignee := model.User{ID: 2, TelegramID: 200}
	partner := model.User{ID: 3, TelegramID: 300}
	noChat := model.User{ID: 4}

	task := model.Task{
		Assignee:  assignee,
		Partners:  []model.User{partner, actor, noChat},
		Informees: []model.User{assignee, partner},
	}
	got := Recipients(task, actor.ID)
	if len(got) != 2 || got[0].ID != assignee.ID || got[1].ID != partner.ID {
		t.Fatalf("Recipients = %+v, want assignee and partner once", got)
	}
}

func TestTaskChangedDeliversToInvolvedUsers(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &captureSender{sent: make(map[int64]string), got: make(chan struct{}, 4)}
	svc := NewNotificationService(100, 8, zerolog.Nop())
	svc.SetSender(sender)
	svc.Start(ctx)

	actor := model.User{ID: 1, TelegramID: 100, FirstName: "Ada"}
	task := model.Task{
		ID:       7,
		Title:    "Fix <login>",
		Assignee: actor,
		Partners: []model.User{{ID: 2, TelegramID: 200}, {ID: 3, TelegramID: 300}},
	}
	svc.TaskChanged(actor, task, "status in_progress → done")

	for i := 0; i < 2; i++ {
		select {
		case <-sender.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 2 notifications delivered", i)
		}
	}
	cancel()
	svc.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if _, ok := sender.sent[100]; ok {
		t.Fatal("actor notified about own change")
	}
	text := sender.sent[200]
	if !strings.Contains(text, "#7") || !strings.Contains(text, "Fix &lt;login&gt;") || !strings.Contains(text, "by Ada") {
		t.Fatalf("unexpected text: %s", text)
	}
}

func TestTaskChangedDropsWhenQueueFull(t *testing.T) {
	t.Parallel()
	svc := NewNotificationService(1, 1, zerolog.Nop())
	task := model.Task{ID: 1, Partners: []model.User{{ID: 2, TelegramID: 200}, {ID: 3, TelegramID: 300}}}
	svc.TaskChanged(model.User{ID: 1}, task, "noise")
	if len(svc.queue) != 1 {
		t.Fatalf("queue len = %d, want 1", len(svc.queue))
	}
	if err := svc.enqueue(outgoing{chatID: 1}); err != ErrQueueFull {
		t.Fatalf("enqueue err = %v, want ErrQueueFull", err)
	}
}

func TestShutdownFlushesQueuedNotifications(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	sender := &captureSender{sent: make(map[int64]string), got: make(chan struct{}, 4)}
	svc := NewNotificationService(50, 8, zerolog.Nop())
	svc.SetSender(sender)

	task := model.Task{ID: 9, Partners: []model.User{{ID: 2, TelegramID: 200}, {ID: 3, TelegramID: 300}, {ID: 4, TelegramID: 400}}}
	svc.TaskChanged(model.User{ID: 1}, task, "due date moved")
	cancel()
	svc.Start(ctx)
	svc.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 3 {
		t.Fatalf("delivered %d of 3 queued notifications", len(sender.sent))
	}
	if len(svc.queue) != 0 {
		t.Fatalf("queue len = %d after shutdown, want 0", len(svc.queue))
	}
}
