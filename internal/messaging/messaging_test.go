package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jakopako/mailwalk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(StartAutomation, StartPayload{Senders: []string{"Shop <news@shop.example>"}, Days: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, StartAutomation, msg.Action)

	var p StartPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, 7, p.Days)
	assert.Equal(t, []string{"Shop <news@shop.example>"}, p.Senders)

	other, err := NewMessage(StartAutomation, nil)
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, other.ID)
	assert.Error(t, other.Decode(&p))
}

func TestFinishedPayloadEncoding(t *testing.T) {
	total := 0
	msg, err := NewMessage(AutomationFinished, FinishedPayload{Total: &total})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":0}`, string(msg.Payload))

	msg, err = NewMessage(AutomationFinished, FinishedPayload{Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"boom"}`, string(msg.Payload))
}

func TestRequestResponse(t *testing.T) {
	b := NewBus()
	defer b.Close()

	b.Handle(OpenAndWait, func(ctx context.Context, msg Message) Response {
		var p OpenPayload
		if err := msg.Decode(&p); err != nil {
			return Failure(err.Error())
		}
		if p.URL == "" {
			return Failure("missing url")
		}
		return Success()
	})

	msg, err := NewMessage(OpenAndWait, OpenPayload{URL: "https://example.com"})
	require.NoError(t, err)
	resp, err := b.Request(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, resp.OK())

	msg, err = NewMessage(OpenAndWait, OpenPayload{})
	require.NoError(t, err)
	resp, err = b.Request(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "missing url", resp.Message)
}

func TestRequestWithoutHandler(t *testing.T) {
	b := NewBus()
	defer b.Close()

	msg, err := NewMessage(Logger, LoggerPayload{Sender: "s"})
	require.NoError(t, err)
	_, err = b.Request(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestRequestTimeout(t *testing.T) {
	b := NewBus()
	defer b.Close()

	b.Handle(OpenAndWait, func(ctx context.Context, msg Message) Response {
		<-ctx.Done()
		return Failure(ctx.Err().Error())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	msg, err := NewMessage(OpenAndWait, OpenPayload{URL: "https://example.com"})
	require.NoError(t, err)
	_, err = b.Request(ctx, msg)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseEndsRunningHandlers(t *testing.T) {
	b := NewBus()
	started := make(chan struct{})
	b.Handle(OpenAndWait, func(ctx context.Context, msg Message) Response {
		close(started)
		<-ctx.Done()
		return Failure("closed")
	})

	msg, err := NewMessage(OpenAndWait, OpenPayload{URL: "https://example.com"})
	require.NoError(t, err)
	type result struct {
		resp Response
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := b.Request(context.Background(), msg)
		resCh <- result{resp, err}
	}()
	<-started
	b.Close()
	res := <-resCh
	if res.err != nil {
		assert.ErrorIs(t, res.err, ErrNoResponse)
	} else {
		assert.False(t, res.resp.OK())
	}

	_, err = b.Request(context.Background(), msg)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNotifySubscribers(t *testing.T) {
	b := NewBus()

	first := b.Subscribe(Log)
	second := b.Subscribe(Log)
	finished := b.Subscribe(AutomationFinished)

	for _, text := range []string{"one", "two"} {
		msg, err := NewMessage(Log, LogPayload{Data: types.LogEntry{Message: text, Type: types.LogLevelInfo}})
		require.NoError(t, err)
		require.NoError(t, b.Notify(msg))
	}

	for _, ch := range []<-chan Message{first, second} {
		for _, want := range []string{"one", "two"} {
			msg := <-ch
			var p LogPayload
			require.NoError(t, msg.Decode(&p))
			assert.Equal(t, want, p.Data.Message)
		}
	}
	assert.Empty(t, finished)

	b.Close()
	_, ok := <-first
	assert.False(t, ok)
	assert.ErrorIs(t, b.Notify(Message{Action: Log}), ErrClosed)

	late := b.Subscribe(Log)
	_, ok = <-late
	assert.False(t, ok)
}

func TestNotifyWithoutSubscribers(t *testing.T) {
	b := NewBus()
	defer b.Close()
	assert.NoError(t, b.Notify(Message{Action: Log}))
}

func TestConcurrentRequests(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	b.Handle(Logger, func(ctx context.Context, msg Message) Response {
		mu.Lock()
		defer mu.Unlock()
		seen[msg.ID] = true
		return Success()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := NewMessage(Logger, LoggerPayload{Sender: "s"})
			if !assert.NoError(t, err) {
				return
			}
			resp, err := b.Request(context.Background(), msg)
			assert.NoError(t, err)
			assert.True(t, resp.OK())
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 20)
}
