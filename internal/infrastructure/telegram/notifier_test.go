package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsRAG/internal/domain"
)

func TestPublishReport(t *testing.T) {
	t.Parallel()

	var text, chat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		text, chat = r.PostForm.Get("text"), r.PostForm.Get("chat_id")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("token", "42")
	n.apiBase = server.URL

	err := n.PublishReport(context.Background(), domain.CollectReport{
		RunID:    "run-1",
		DateFrom: "2025-03-07",
		DateTo:   "2025-03-08",
		Total:    3,
		Fetched:  5,
		Skipped:  2,
		Deleted:  4,
		PerTheme: []domain.ThemeCount{{Theme: "반도체", Fetched: 5, Stored: 3}},
		Duration: 90 * time.Second,
	})
	if err != nil {
		t.Fatalf("PublishReport error: %v", err)
	}
	if chat != "42" {
		t.Fatalf("unexpected chat id %q", chat)
	}
	for _, want := range []string{"2025-03-07 ~ 2025-03-08", "저장 3 / 수집 5", "만료 삭제 4", "- 반도체: 3/5", "run-1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message %q does not contain %q", text, want)
		}
	}
}

func TestPublishReportMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").PublishReport(context.Background(), domain.CollectReport{}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestPublishReportStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewNotifier("token", "42")
	n.apiBase = server.URL
	if err := n.PublishReport(context.Background(), domain.CollectReport{}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
