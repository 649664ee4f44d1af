package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testSender(t *testing.T) (*Sender, *[]time.Duration) {
	t.Helper()
	sender := NewSender(Options{SendDelay: time.Millisecond, Timeout: time.Second}, zerolog.Nop())

	sleeps := &[]time.Duration{}
	sender.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return sender, sleeps
}

func TestSendSuccess(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender, _ := testSender(t)
	if err := sender.Send(context.Background(), srv.URL, "hello"); err != nil {
		t.Fatalf("2xx 响应不应报错: %v", err)
	}
	if received["content"] != "hello" {
		t.Fatalf("content 字段不正确: %#v", received)
	}
}

func TestSendBackpressureRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]float64{"retry_after": 1})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, sleeps := testSender(t)
	if err := sender.Send(context.Background(), srv.URL, "hello"); err != nil {
		t.Fatalf("429 后重试应成功: %v", err)
	}

	if calls.Load() != 3 {
		t.Fatalf("期望 3 次请求, 实际 %d", calls.Load())
	}
	if len(*sleeps) != 2 {
		t.Fatalf("期望恰好 2 次退避等待, 实际 %d", len(*sleeps))
	}
	want := time.Second + 250*time.Millisecond
	for i, d := range *sleeps {
		if d != want {
			t.Fatalf("第 %d 次等待时长应为 %s, 实际 %s", i, want, d)
		}
	}
}

func TestSendFatalOnOtherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad payload"))
	}))
	defer srv.Close()

	sender, _ := testSender(t)
	err := sender.Send(context.Background(), srv.URL, "hello")
	if err == nil {
		t.Fatal("非 429 的错误状态应为致命错误")
	}

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("应返回 *FatalError, 实际 %T", err)
	}
	if fatal.Status != http.StatusBadRequest {
		t.Fatalf("状态码应为 400, 实际 %d", fatal.Status)
	}
	if fatal.Body != "bad payload" {
		t.Fatalf("应携带响应体: %q", fatal.Body)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		body string
		want time.Duration
	}{
		{`{"retry_after": 2}`, 2 * time.Second},
		{`{"retry_after": 0.5}`, 500 * time.Millisecond},
		{`3`, 3 * time.Second},
		{``, time.Second},
		{`not json`, time.Second},
		{`{"message":"slow down"}`, time.Second},
	}
	for _, c := range cases {
		if got := parseRetryAfter([]byte(c.body)); got != c.want {
			t.Fatalf("body %q: 期望 %s, 实际 %s", c.body, c.want, got)
		}
	}
}

func TestPickSinkRoundRobin(t *testing.T) {
	sinks := []string{"a", "b", "c"}
	expected := []string{"a", "b", "c", "a", "b"}
	for i, want := range expected {
		if got := PickSink(sinks, i); got != want {
			t.Fatalf("第 %d 个单元应使用 sink %s, 实际 %s", i, want, got)
		}
	}
}
