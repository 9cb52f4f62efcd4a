// Package messaging connects the parts of a run the way the extension
// runtime connected popup, content script and background worker: one-way
// notifications delivered to subscribers and requests answered by a
// single handler.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jakopako/mailwalk/internal/types"
)

// Action names a kind of message.
type Action string

const (
	StartAutomation    Action = "startAutomation"
	OpenAndWait        Action = "openAndWait"
	Logger             Action = "logger"
	Log                Action = "log"
	AutomationFinished Action = "automationFinished"
)

var (
	// ErrNoResponse is returned when a request was not answered.
	ErrNoResponse = errors.New("no response received")
	// ErrClosed is returned when the bus has been closed.
	ErrClosed = errors.New("message bus closed")
)

// StartPayload starts a run.
type StartPayload struct {
	Senders []string `json:"senders"`
	Days    int      `json:"days"`
}

// OpenPayload asks for a url to be visited in a new tab.
type OpenPayload struct {
	URL string `json:"url"`
}

// LoggerPayload asks for a processed email to be reported.
type LoggerPayload struct {
	AccessToken string `json:"access_token"`
	Sender      string `json:"sender"`
	Email       string `json:"email"`
}

// LogPayload mirrors a log entry to the console.
type LogPayload struct {
	Data types.LogEntry `json:"data"`
}

// FinishedPayload ends a run. Exactly one of Total and Error is set.
// Stopped marks a run that ended on a stop request.
type FinishedPayload struct {
	Total   *int   `json:"total,omitempty"`
	Stopped bool   `json:"stopped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message is an envelope with a JSON encoded payload.
type Message struct {
	ID      string          `json:"id"`
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message with a fresh id.
func NewMessage(action Action, payload any) (Message, error) {
	m := Message{ID: uuid.NewString(), Action: action}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("error encoding %s payload: %w", action, err)
		}
		m.Payload = b
	}
	return m, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message %s has no payload", m.Action, m.ID)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("error decoding %s payload: %w", m.Action, err)
	}
	return nil
}

// Response answers a request.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func Success() Response { return Response{Status: StatusSuccess} }

func Failure(msg string) Response { return Response{Status: StatusError, Message: msg} }

// OK reports whether the response signals success.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// HandlerFunc answers a request.
type HandlerFunc func(ctx context.Context, msg Message) Response

// subscriptionBuffer is the number of notifications a subscriber may lag
// behind before Notify blocks.
const subscriptionBuffer = 256

// Bus is an in-process message bus. The zero value is not usable, use
// NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Action]HandlerFunc
	subs     map[Action][]chan Message
	closed   bool

	// ctx ends when the bus is closed, running handlers observe it.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	inflight  sync.WaitGroup
}

func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		handlers: map[Action]HandlerFunc{},
		subs:     map[Action][]chan Message{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle registers the handler for requests of the given action,
// replacing any previous one.
func (b *Bus) Handle(action Action, h HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[action] = h
}

// Request sends msg to its handler and waits for the response. If the
// context ends first the request fails with ErrNoResponse.
func (b *Bus) Request(ctx context.Context, msg Message) (Response, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return Response{}, ErrClosed
	}
	h, ok := b.handlers[msg.Action]
	if !ok {
		b.mu.RUnlock()
		return Response{}, fmt.Errorf("%w: no receiver for %s", ErrNoResponse, msg.Action)
	}
	b.inflight.Add(1)
	b.mu.RUnlock()

	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	respCh := make(chan Response, 1)
	go func() {
		defer b.inflight.Done()
		respCh <- h(hctx, msg)
	}()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return Response{}, fmt.Errorf("%w: %w", ErrNoResponse, ctx.Err())
	case <-b.ctx.Done():
		return Response{}, fmt.Errorf("%w: %w", ErrNoResponse, ErrClosed)
	}
}

// Notify delivers msg to every subscriber of its action. It blocks while
// a subscriber's buffer is full. Messages without subscribers are dropped.
func (b *Bus) Notify(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs[msg.Action] {
		select {
		case ch <- msg:
		case <-b.ctx.Done():
			return ErrClosed
		}
	}
	return nil
}

// Subscribe returns a channel receiving all future notifications of the
// given action. The channel is closed when the bus is closed.
func (b *Bus) Subscribe(action Action) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Message, subscriptionBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[action] = append(b.subs[action], ch)
	return ch
}

// Close stops delivery, waits for running handlers to return and closes
// all subscriptions.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		b.closed = true
		for _, chs := range b.subs {
			for _, ch := range chs {
				close(ch)
			}
		}
		b.subs = nil
		b.mu.Unlock()
		b.inflight.Wait()
	})
}
