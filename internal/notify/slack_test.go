package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNotifierSend(t *testing.T) {
	var gotReq *http.Request
	var body bytes.Buffer
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		io.Copy(&body, r.Body)
		w.WriteHeader(200)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "deploypipe")
	if err := n.Send(context.Background(), Msg{Text: "Deployed webapp:abc1234 to dev."}); err != nil {
		t.Fatal(err)
	}

	if gotReq == nil {
		t.Fatal("expected a webhook request")
	}
	if gotReq.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", gotReq.Method)
	}

	var msg Msg
	if err := json.NewDecoder(&body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Username != "deploypipe" {
		t.Errorf("username = %q, want notifier default", msg.Username)
	}
	if msg.Text != "Deployed webapp:abc1234 to dev." {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestNotifierSendNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel_not_found", http.StatusNotFound)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "")
	err := n.Send(context.Background(), Msg{Text: "hello"})
	if err == nil {
		t.Fatal("expected error on 404")
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("error should carry the response body, got: %v", err)
	}
}

func TestNotifierEnabled(t *testing.T) {
	if NewNotifier("", "x").Enabled() {
		t.Error("notifier without hook URL must be disabled")
	}
	if !NewNotifier("https://hooks.example.com/x", "x").Enabled() {
		t.Error("notifier with hook URL must be enabled")
	}
}

func TestBuildMessageDeploy(t *testing.T) {
	msg, err := BuildMessage(RunReport{
		Environment: "staging",
		Repository:  "webapp",
		Revision:    "abc1234",
		Statuses: map[string]string{
			"validate-plan@staging": "succeeded",
			"deploy@staging":        "succeeded",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if msg.Text != "Deployed webapp:abc1234 to staging." {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	if msg.Attachments[0].Color != "good" {
		t.Errorf("color = %s, want good", msg.Attachments[0].Color)
	}
	if !strings.Contains(msg.Attachments[0].Text, "deploy@staging") {
		t.Errorf("attachment should list jobs:\n%s", msg.Attachments[0].Text)
	}
}

func TestBuildMessageDestroy(t *testing.T) {
	msg, err := BuildMessage(RunReport{Environment: "dev", Destroy: true})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "Destroyed all managed infrastructure in dev." {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestBuildMessageFailure(t *testing.T) {
	msg, err := BuildMessage(RunReport{
		Environment: "prod",
		Failed:      true,
		Statuses:    map[string]string{"deploy@prod": "failed"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "Pipeline run for prod failed." {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.Attachments[0].Color != "warning" {
		t.Errorf("color = %s, want warning", msg.Attachments[0].Color)
	}
}
