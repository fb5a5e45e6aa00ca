// Package notify posts run results to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// Msg is a Slack incoming-webhook payload
type Msg struct {
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a coloured block under the message text
type Attachment struct {
	Fallback string   `json:"fallback,omitempty"`
	Text     string   `json:"text"`
	Color    string   `json:"color,omitempty"`
	Markdown []string `json:"mrkdwn_in,omitempty"`
}

const (
	deployTemplate  = `Deployed {{.Repository}}:{{.Revision}} to {{.Environment}}.`
	destroyTemplate = `Destroyed all managed infrastructure in {{.Environment}}.`
	failureTemplate = `Pipeline run for {{.Environment}} failed.`
)

// Notifier posts messages to one webhook URL
type Notifier struct {
	HookURL  string
	Username string
	Client   *http.Client
}

// NewNotifier creates a notifier with a bounded request timeout
func NewNotifier(hookURL, username string) *Notifier {
	return &Notifier{
		HookURL:  hookURL,
		Username: username,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a webhook is configured at all
func (n *Notifier) Enabled() bool {
	return n.HookURL != ""
}

// Send posts one message. A non-2xx response is an error.
func (n *Notifier) Send(ctx context.Context, msg Msg) error {
	if msg.Username == "" {
		msg.Username = n.Username
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return errors.Wrap(err, "encoding webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.HookURL, buf)
	if err != nil {
		return errors.Wrap(err, "constructing webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting to webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
		return fmt.Errorf("%s from webhook (%s)", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// RunReport is the material for a completion notification
type RunReport struct {
	Environment string
	Repository  string
	Revision    string
	Destroy     bool
	Failed      bool
	Statuses    map[string]string // job ID -> status
}

// BuildMessage renders the completion notification for one run
func BuildMessage(report RunReport) (Msg, error) {
	tmpl := deployTemplate
	color := "good"
	switch {
	case report.Failed:
		tmpl = failureTemplate
		color = "warning"
	case report.Destroy:
		tmpl = destroyTemplate
	}

	text, err := instantiateTemplate("run-report", tmpl, report)
	if err != nil {
		return Msg{}, err
	}

	msg := Msg{Text: text}
	if len(report.Statuses) > 0 {
		msg.Attachments = append(msg.Attachments, statusAttachment(report.Statuses, color))
	}
	return msg, nil
}

// statusAttachment renders per-job statuses as a code block
func statusAttachment(statuses map[string]string, color string) Attachment {
	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	buf := &bytes.Buffer{}
	fmt.Fprintln(buf, "```")
	for _, id := range ids {
		fmt.Fprintf(buf, "%-30s %s\n", id, statuses[id])
	}
	fmt.Fprintln(buf, "```")

	return Attachment{
		Text:     buf.String(),
		Fallback: "job statuses",
		Color:    color,
		Markdown: []string{"text"},
	}
}

func instantiateTemplate(name, text string, args interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s template", name)
	}
	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, args); err != nil {
		return "", errors.Wrapf(err, "executing %s template", name)
	}
	return buf.String(), nil
}
