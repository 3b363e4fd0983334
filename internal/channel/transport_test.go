package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRestyClientRetriesTransientStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewRestyClient(TransportOptions{MaxRetries: 2, RetryWait: time.Millisecond})
	resp, err := client.R().SetContext(context.Background()).Post(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if string(resp.Body()) != "ok" {
		t.Fatalf("unexpected body: %s", string(resp.Body()))
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestRestyClientDoesNotRetryClientError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewRestyClient(TransportOptions{MaxRetries: 3, RetryWait: time.Millisecond})
	resp, err := client.R().Post(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", hits)
	}
}

func TestWithDefaultTimeoutKeepsCallerDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ctx, release := WithDefaultTimeout(parent, time.Minute)
	defer release()
	deadline, ok := ctx.Deadline()
	parentDeadline, _ := parent.Deadline()
	if !ok || !deadline.Equal(parentDeadline) {
		t.Fatalf("caller deadline should be kept")
	}

	ctx2, release2 := WithDefaultTimeout(context.Background(), 50*time.Millisecond)
	defer release2()
	if _, ok := ctx2.Deadline(); !ok {
		t.Fatalf("default deadline should be applied")
	}
}
