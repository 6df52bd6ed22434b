package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voiceagent-platform/internal/config"
)

// ErrSMSUnavailable covers every transport-level SMS failure, including
// missing credentials. Callers record the failure and move on; SMS problems
// never fail a voice request.
var ErrSMSUnavailable = errors.New("telephony: sms transport unavailable")

// SMSSender is the opaque send(to, body) boundary. The returned id is the
// provider's message id when the provider reports one.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (messageID string, err error)
}

const twilioAPIBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioSMSSender posts to the Messages endpoint directly, form-encoded with
// basic auth. Same no-SDK stance as the TwiML builder.
type TwilioSMSSender struct {
	client     *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilioSMSSender(cfg config.TwilioConfig) *TwilioSMSSender {
	return &TwilioSMSSender{
		client:     &http.Client{Timeout: 15 * time.Second},
		baseURL:    twilioAPIBaseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.PhoneNumber,
	}
}

func (s *TwilioSMSSender) Send(ctx context.Context, to, body string) (string, error) {
	if s.accountSID == "" || s.authToken == "" || s.from == "" {
		return "", fmt.Errorf("%w: credentials not configured", ErrSMSUnavailable)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSMSUnavailable, err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSMSUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrSMSUnavailable, resp.StatusCode, snippet)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Message was accepted; a missing sid only loses the provider id.
		return "", nil
	}
	return out.SID, nil
}
