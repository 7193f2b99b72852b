// Package mailer sends transactional email through the Resend HTTP API or,
// when configured, a plain SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.resend.com/emails"

type Config struct {
	APIURL    string
	APIKey    string
	FromEmail string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Client struct {
	cfg        Config
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled reports whether any transport is configured.
func (c *Client) Enabled() bool {
	return c.cfg.SMTPHost != "" || c.cfg.APIKey != ""
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.cfg.SMTPHost != "" {
		return c.sendViaSMTP(msg)
	}
	return c.sendViaAPI(ctx, msg)
}

func (c *Client) sendViaAPI(ctx context.Context, msg Message) error {
	body := resendRequest{
		From:    c.cfg.FromEmail,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mail API error: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) sendViaSMTP(msg Message) error {
	addr := c.cfg.SMTPHost + ":" + c.cfg.SMTPPort

	var b strings.Builder
	b.WriteString("From: " + c.cfg.FromEmail + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)

	var auth smtp.Auth
	if c.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", c.cfg.SMTPUser, c.cfg.SMTPPass, c.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, c.cfg.FromEmail, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
