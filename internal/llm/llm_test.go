package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-insights-go/internal/logger"
	"product-insights-go/internal/metrics"
)

func fastHTTP(retries uint64) HTTPOptions {
	return HTTPOptions{Timeout: 2 * time.Second, MaxRetries: retries, RetryInterval: time.Millisecond}
}

func TestMessagesClient_RequestShape(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-a", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello"}]}`))
	}))
	defer srv.Close()

	c := NewMessagesClient(MessagesConfig{BaseURL: srv.URL + "/", APIKey: "key-a", Model: "m-a", HTTP: fastHTTP(0)})
	text, err := c.Complete(context.Background(), UserPrompt("be brief", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "m-a", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
}

func TestMessagesClient_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewMessagesClient(MessagesConfig{BaseURL: srv.URL, HTTP: fastHTTP(0)})
	_, err := c.Complete(context.Background(), UserPrompt("", "hi"))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestChatClient_RequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-b", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"answer"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "key-b", Model: "m-b", Temperature: 0.7, HTTP: fastHTTP(0)})
	req := UserPrompt("system text", "question")
	req.MaxTokens = 300
	text, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
	assert.Equal(t, "m-b", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: "system text"}, got.Messages[0])
	assert.Equal(t, Message{Role: RoleUser, Content: "question"}, got.Messages[1])
}

func TestChatClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, HTTP: fastHTTP(0)})
	_, err := c.Complete(context.Background(), UserPrompt("", "q"))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, HTTP: fastHTTP(3)})
	text, err := c.Complete(context.Background(), UserPrompt("", "q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, HTTP: fastHTTP(3)})
	_, err := c.Complete(context.Background(), UserPrompt("", "q"))
	require.Error(t, err)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.False(t, serr.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_NoRetriesByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewMessagesClient(MessagesConfig{BaseURL: srv.URL, HTTP: fastHTTP(0)})
	_, err := c.Complete(context.Background(), UserPrompt("", "q"))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, HTTP: fastHTTP(2)})
	_, err := c.Complete(context.Background(), UserPrompt("", "q"))
	assert.ErrorContains(t, err, "decode response")
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(metrics.LLMRequests.WithLabelValues("anthropic", "failure"))
	c := NewMessagesClient(MessagesConfig{BaseURL: srv.URL, HTTP: fastHTTP(0)})
	_, _ = c.Complete(context.Background(), UserPrompt("", "q"))
	after := testutil.ToFloat64(metrics.LLMRequests.WithLabelValues("anthropic", "failure"))
	assert.Equal(t, before+1, after)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	failing := namedFunc("flaky", func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("boom")
	})
	b := NewBreaker(failing, BreakerConfig{MaxFailures: 2, Cooldown: time.Hour}, logger.Discard().Entry)

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), Request{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("flaky")))
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	canceled := namedFunc("patient", func(ctx context.Context, req Request) (string, error) {
		return "", context.Canceled
	})
	b := NewBreaker(canceled, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour}, logger.Discard().Entry)

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), Request{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestChain_FailsOver(t *testing.T) {
	first := namedFunc("a", func(ctx context.Context, req Request) (string, error) {
		return "", errors.New("down")
	})
	second := namedFunc("b", func(ctx context.Context, req Request) (string, error) {
		return "from b", nil
	})

	text, err := NewChain(logger.Discard().Entry, first, second).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from b", text)
}

func TestChain_BlankAnswerCountsAsFailure(t *testing.T) {
	blank := namedFunc("a", func(ctx context.Context, req Request) (string, error) {
		return "   ", nil
	})
	second := namedFunc("b", func(ctx context.Context, req Request) (string, error) {
		return "real", nil
	})

	text, err := NewChain(logger.Discard().Entry, blank, second).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "real", text)
}

func TestChain_AllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	a := namedFunc("a", func(ctx context.Context, req Request) (string, error) { return "", errA })
	b := namedFunc("b", func(ctx context.Context, req Request) (string, error) { return "", errB })

	_, err := NewChain(logger.Discard().Entry, a, b).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain(logger.Discard().Entry).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoCompleters)
}

func TestChain_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var secondCalled bool
	a := namedFunc("a", func(ctx context.Context, req Request) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	b := namedFunc("b", func(ctx context.Context, req Request) (string, error) {
		secondCalled = true
		return "late", nil
	})

	_, err := NewChain(logger.Discard().Entry, a, b).Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, secondCalled)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[1,2]\n```", `[1,2]`},
		{"prose around object", `Sure! {"x":{"y":2}} hope that helps`, `{"x":{"y":2}}`},
		{"brace in string", `{"s":"a } b"}`, `{"s":"a } b"}`},
		{"escaped quote", `{"s":"say \"}\" ok"}`, `{"s":"say \"}\" ok"}`},
		{"unbalanced", `[{"a":1}`, ``},
		{"none", `no json here`, ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

type named struct {
	name string
	CompleterFunc
}

func (n named) Name() string { return n.name }

func namedFunc(name string, fn CompleterFunc) Completer {
	return named{name: name, CompleterFunc: fn}
}
