// Package whatsappsvc sends text messages through the WhatsApp
// Business Cloud API.
package whatsappsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core/reminder"
	"github.com/akilisha/darasa/core/user"
)

var apiURL = "https://graph.facebook.com/v18.0"

type service struct {
	client *http.Client
}

var _ reminder.Messenger = (*service)(nil)

func NewService() *service {
	return &service{client: &http.Client{Timeout: 30 * time.Second}}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (svc *service) SendText(ctx context.Context, creds user.WhatsAppCredentials, to, body string) error {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	msg.Text.Body = body

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		apiURL+"/"+creds.PhoneNumberID+"/messages",
		bytes.NewReader(payload),
	)
	if err != nil {
		return errors.Wrap(err, "building message request")
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		resBody, _ := io.ReadAll(res.Body)
		return errors.Errorf("sending message - status: %d - Body: %s", res.StatusCode, resBody)
	}
	return nil
}
