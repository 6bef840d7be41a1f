package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTelegramSendSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegram("token", "chat", "errchat", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), "#*DOGE* price: 1.5!"); err != nil {
		t.Fatalf("send should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if received["parse_mode"] != "MarkdownV2" {
		t.Fatalf("reports must be sent as MarkdownV2: %#v", received)
	}
	if received["text"] != "\\#*DOGE* price: 1\\.5\\!" {
		t.Fatalf("text should be escaped with markers kept, got %q", received["text"])
	}
}

func TestTelegramSendErrorUsesErrorChat(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegram("token", "chat", "errchat", srv.URL, time.Second, testLogger())

	if err := notifier.SendError(context.Background(), "fetch failed."); err != nil {
		t.Fatalf("send should succeed: %v", err)
	}

	if received["chat_id"] != "errchat" {
		t.Fatalf("error notices must go to the error chat: %#v", received)
	}
	if _, ok := received["parse_mode"]; ok {
		t.Fatal("error notices must be plain text")
	}
	if received["text"] != "fetch failed." {
		t.Fatalf("error text must not be escaped, got %q", received["text"])
	}
}

func TestTelegramOkFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegram("token", "chat", "errchat", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestTelegramHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegram("token", "chat", "errchat", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), "hello"); err == nil {
		t.Fatal("HTTP 502 should be an error")
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("*bold* _italic_ [link](url) a-b c.d!")
	want := "*bold* _italic_ \\[link\\]\\(url\\) a\\-b c\\.d\\!"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
