package resendhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/BearBump/RequestBox/internal/notify"
	"github.com/pkg/errors"
)

// Client отправляет письма через транзакционный email API (Resend-совместимый).
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Name() string { return models.ChannelPrimaryAPI }

func (c *Client) Configured() bool { return c.apiKey != "" }

type sendReq struct {
	From        string           `json:"from"`
	To          []string         `json:"to"`
	Subject     string           `json:"subject"`
	Text        string           `json:"text,omitempty"`
	HTML        string           `json:"html,omitempty"`
	Attachments []sendAttachment `json:"attachments,omitempty"`
}

type sendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type sendResp struct {
	ID string `json:"id"`
}

func (c *Client) Send(ctx context.Context, msg notify.Message) (string, error) {
	body := sendReq{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.PlainBody,
		HTML:    msg.HTMLBody,
	}
	for _, a := range msg.Attachments {
		body.Attachments = append(body.Attachments, sendAttachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.MIMEType,
		})
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshal send request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(buf))
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("email api http %d", resp.StatusCode)
	}

	var r sendResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	return r.ID, nil
}
