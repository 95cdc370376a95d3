// Package zoomsvc schedules Zoom meetings using per-account
// Server-to-Server OAuth credentials.
package zoomsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/akilisha/darasa/core/session"
	"github.com/akilisha/darasa/core/user"
)

var (
	tokenURL = "https://zoom.us/oauth/token"
	apiURL   = "https://api.zoom.us/v2"
)

const scheduledMeetingType = 2

type service struct {
	client *http.Client
}

var _ session.MeetingScheduler = (*service)(nil)

func NewService() *service {
	return &service{client: &http.Client{Timeout: 30 * time.Second}}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type meetingRequest struct {
	Topic     string `json:"topic"`
	Type      int    `json:"type"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"` // minutes
	Timezone  string `json:"timezone"`
}

type meetingResponse struct {
	ID       int64  `json:"id"`
	JoinURL  string `json:"join_url"`
	StartURL string `json:"start_url"`
}

// getToken performs the account_credentials grant. Tokens are short
// lived and meetings are created rarely, so no token cache is kept.
func (svc *service) getToken(ctx context.Context, creds user.ZoomCredentials) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", creds.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "building token request")
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "requesting access token")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return "", errors.Errorf("requesting access token - status: %d - Body: %s", res.StatusCode, body)
	}

	var tok tokenResponse
	if err = json.NewDecoder(res.Body).Decode(&tok); err != nil {
		return "", errors.Wrap(err, "decoding token response")
	}
	return tok.AccessToken, nil
}

func (svc *service) ScheduleMeeting(ctx context.Context, creds user.ZoomCredentials, nm session.NewMeeting) (session.Meeting, error) {
	token, err := svc.getToken(ctx, creds)
	if err != nil {
		return session.Meeting{}, err
	}

	payload, err := json.Marshal(meetingRequest{
		Topic:     nm.Topic,
		Type:      scheduledMeetingType,
		StartTime: nm.StartAt.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  int(nm.Duration.Minutes()),
		Timezone:  "UTC",
	})
	if err != nil {
		return session.Meeting{}, errors.Wrap(err, "encoding meeting request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/users/me/meetings", bytes.NewReader(payload))
	if err != nil {
		return session.Meeting{}, errors.Wrap(err, "building meeting request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return session.Meeting{}, errors.Wrap(err, "creating meeting")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return session.Meeting{}, errors.Errorf("creating meeting - status: %d - Body: %s", res.StatusCode, body)
	}

	var meeting meetingResponse
	if err = json.NewDecoder(res.Body).Decode(&meeting); err != nil {
		return session.Meeting{}, errors.Wrap(err, "decoding meeting response")
	}
	return session.Meeting{
		ID:       fmt.Sprintf("%d", meeting.ID),
		JoinURL:  meeting.JoinURL,
		StartURL: meeting.StartURL,
	}, nil
}
