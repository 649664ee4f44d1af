package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPClientTranslateSuccess(t *testing.T) {
	var gotKey string
	var gotReq translateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"translations": []string{"  uno  ", "dos"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, TargetLanguage: "es", Timeout: time.Second}, zerolog.Nop())

	out, err := client.Translate(context.Background(), "secret", []string{"one", "two"})
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}

	if gotKey != "secret" {
		t.Fatalf("凭证应通过 X-API-Key 传递, 实际 %q", gotKey)
	}
	if gotReq.TargetLanguage != "es" {
		t.Fatalf("目标语言不正确: %q", gotReq.TargetLanguage)
	}
	if len(gotReq.Items) != 2 || gotReq.Items[1].I != 1 || gotReq.Items[1].Text != "two" {
		t.Fatalf("items 负载不正确: %#v", gotReq.Items)
	}
	if out[0] != "uno" || out[1] != "dos" {
		t.Fatalf("译文应去除首尾空白: %#v", out)
	}
}

func TestHTTPClientTranslateLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"translations": []string{"solo uno"}})
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())

	if _, err := client.Translate(context.Background(), "k", []string{"one", "two"}); err == nil {
		t.Fatal("译文数量不符应报错")
	}
}

func TestHTTPClientTranslateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Too many requests"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())

	_, err := client.Translate(context.Background(), "k", []string{"one"})
	if err == nil {
		t.Fatal("429 应报错")
	}
	if !IsRateLimited(err) {
		t.Fatalf("429 应被判定为限流: %v", err)
	}
}

func TestHTTPClientTranslateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Service Unavailable"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())

	_, err := client.Translate(context.Background(), "k", []string{"one"})
	if err == nil {
		t.Fatal("503 应报错")
	}
	if !IsUnavailable(err) {
		t.Fatalf("503 应被判定为服务不可用: %v", err)
	}
}
