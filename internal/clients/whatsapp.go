package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

const graphBaseURL = "https://graph.facebook.com/v20.0"

// WhatsAppClient sends messages through the WhatsApp Cloud API. The
// access token is passed per call because each tenant carries its own.
type WhatsAppClient struct {
	http *resty.Client
}

func NewWhatsAppClient() *WhatsAppClient {
	return &WhatsAppClient{
		http: resty.New().
			SetBaseURL(graphBaseURL).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message and returns the provider message id.
func (c *WhatsAppClient) SendText(ctx context.Context, accessToken, phoneNumberID, to, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	}
	return c.send(ctx, accessToken, phoneNumberID, payload)
}

// SendButtons sends an interactive reply-button message (max 3 buttons).
func (c *WhatsAppClient) SendButtons(ctx context.Context, accessToken, phoneNumberID, to, body string, buttons []flows.Button) (string, error) {
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": btns},
		},
	}
	return c.send(ctx, accessToken, phoneNumberID, payload)
}

// SendList sends an interactive list message with a single section.
func (c *WhatsAppClient) SendList(ctx context.Context, accessToken, phoneNumberID, to string, msg flows.SendList) (string, error) {
	rows := make([]map[string]string, 0, len(msg.Rows))
	for _, r := range msg.Rows {
		row := map[string]string{"id": r.ID, "title": r.Title}
		if r.Description != "" {
			row["description"] = r.Description
		}
		rows = append(rows, row)
	}

	interactive := map[string]any{
		"type": "list",
		"body": map[string]string{"text": msg.Body},
		"action": map[string]any{
			"button": msg.ButtonLabel,
			"sections": []map[string]any{
				{"title": msg.SectionTitle, "rows": rows},
			},
		},
	}
	if msg.Header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": msg.Header}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	}
	return c.send(ctx, accessToken, phoneNumberID, payload)
}

func (c *WhatsAppClient) send(ctx context.Context, accessToken, phoneNumberID string, payload map[string]any) (string, error) {
	var out waSendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/%s/messages", phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("whatsapp send failed: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		utils.Zlog.Error("WhatsApp send rejected",
			zap.String("phone_number_id", phoneNumberID),
			zap.Int("status", resp.StatusCode()),
			zap.String("error", msg))
		return "", fmt.Errorf("whatsapp send rejected: %s", msg)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}
