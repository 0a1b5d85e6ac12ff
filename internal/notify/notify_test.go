package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotifierSend(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:    "Completeness run finished",
		Message:  "13 genomes: 12 succeeded, 1 failed",
		Type:     NotifyWarning,
		Pipeline: "completeness",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Text != "Completeness run finished" {
		t.Errorf("Text = %q", payload.Text)
	}
	if len(payload.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(payload.Attachments))
	}
	att := payload.Attachments[0]
	if att.Title != "completeness" || att.Color != "warning" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestSlackNotifierEmptyWebhookIsNoop(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier should not error, got %v", err)
	}
}

func TestSlackNotifierNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	if err := notifier.Send(Notification{Title: "x"}); err == nil {
		t.Error("expected error on 400 response")
	}
}

func TestSlackColor(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}
	for _, tt := range tests {
		if got := SlackColor(tt.severity); got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.severity, got, tt.want)
		}
	}
}

type recordingNotifier struct {
	name  string
	calls *[]string
}

func (r *recordingNotifier) Send(Notification) error {
	*r.calls = append(*r.calls, r.name)
	return nil
}

func TestMultiNotifier(t *testing.T) {
	var called []string
	multi := NewMultiNotifier(
		&recordingNotifier{name: "slack", calls: &called},
		&recordingNotifier{name: "log", calls: &called},
	)
	if err := multi.Send(Notification{Title: "Test"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(called) != 2 {
		t.Errorf("Expected 2 deliveries, got %d", len(called))
	}
}
