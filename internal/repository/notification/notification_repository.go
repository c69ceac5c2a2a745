package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"phishSentinel/domain"

	"github.com/pobyzaarif/goshortcute"
)

type MailjetConfig struct {
	MailjetBaseURL           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
	AlertRecipientEmail      string
	AlertRecipientName       string
}

// Enabled reports whether phishing alerts can be sent.
func (c MailjetConfig) Enabled() bool {
	return c.MailjetBaseURL != "" && c.AlertRecipientEmail != ""
}

// MailjetRepository emails the security contact when a tab is judged phishing.
type MailjetRepository struct {
	mailjetConfig MailjetConfig
	client        *http.Client
}

func NewMailjetRepository(cfg MailjetConfig) *MailjetRepository {
	return &MailjetRepository{
		mailjetConfig: cfg,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

type payloadSendEmail struct {
	Messages []Messages `json:"Messages"`
}

type From struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type To struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type Messages struct {
	From     From   `json:"From"`
	To       []To   `json:"To"`
	Subject  string `json:"Subject"`
	TextPart string `json:"TextPart"`
	HTMLPart string `json:"HTMLPart"`
}

func (r *MailjetRepository) SendPhishingAlert(ctx context.Context, tabID int, v domain.TabVerdict) error {
	subject := fmt.Sprintf("Phishing page detected in tab %d", tabID)
	text := fmt.Sprintf("URL: %s\nScore: %.4f\nDecision: %s", v.URL, v.Score, v.Decision)
	// the URL is attacker controlled
	body := fmt.Sprintf("<p>URL: <code>%s</code></p><p>Score: %.4f</p><p>Decision: <b>%s</b></p>",
		html.EscapeString(v.URL), v.Score, html.EscapeString(v.Decision))
	return r.SendEmail(ctx, r.mailjetConfig.AlertRecipientName, r.mailjetConfig.AlertRecipientEmail, subject, text, body)
}

func (r *MailjetRepository) SendEmail(ctx context.Context, toName, toEmail, subject, text, htmlPart string) error {
	url := r.mailjetConfig.MailjetBaseURL + "/v3.1/send"

	payload := payloadSendEmail{
		Messages: []Messages{{
			From: From{
				Email: r.mailjetConfig.MailjetSenderEmail,
				Name:  r.mailjetConfig.MailjetSenderName,
			},
			To:       []To{{Email: toEmail, Name: toName}},
			Subject:  subject,
			TextPart: text,
			HTMLPart: htmlPart,
		}},
	}

	payloadByte, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadByte))
	if err != nil {
		return err
	}

	buildBasicAuth := goshortcute.StringtoBase64Encode(r.mailjetConfig.MailjetBasicAuthUsername + ":" + r.mailjetConfig.MailjetBasicAuthPassword)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Basic "+buildBasicAuth)

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	return fmt.Errorf("mailer service return negative response %v: %s", res.StatusCode, bodyBytes)
}
