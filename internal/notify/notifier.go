// Package notify triggers the push-notification endpoint for the newest
// post touched by a run. Notification failures are logged and swallowed:
// by the time a notification is attempted the core persistence has already
// succeeded, so they must never fail the run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"telefeed-sync/internal/feed"
	"telefeed-sync/internal/locales"
	keys "telefeed-sync/pkg/locales"
)

const (
	sendPath       = "/send-daily-notification"
	requestTimeout = 30 * time.Second
)

// PushNotifier posts a fixed-shape payload to the notification endpoint.
type PushNotifier struct {
	baseURL     string
	frontendURL string
	lang        string
	http        *http.Client
}

// NewPushNotifier creates a notifier. An empty baseURL disables it.
func NewPushNotifier(baseURL, frontendURL, lang string) *PushNotifier {
	return &PushNotifier{
		baseURL:     baseURL,
		frontendURL: frontendURL,
		lang:        lang,
		http:        &http.Client{Timeout: requestTimeout},
	}
}

type payload struct {
	Title string  `json:"title"`
	Body  string  `json:"body"`
	Image *string `json:"image,omitempty"`
	URL   string  `json:"url"`
}

// NotifyLatest sends one notification describing the post. The deep link
// embeds the composite id so the front end can open the exact post.
func (n *PushNotifier) NotifyLatest(ctx context.Context, post feed.Post) {
	if n.baseURL == "" {
		log.Println("Push base URL not configured, skipping notification.")
		return
	}

	localizer := locales.NewLocalizer(n.lang)
	body := post.Text
	if body == "" {
		body = locales.GetMessage(localizer, keys.MsgNotifyBodyFallback, nil)
	}
	p := payload{
		Title: locales.GetMessage(localizer, keys.MsgNotifyTitle, nil),
		Body:  body,
		Image: post.Image,
		URL:   fmt.Sprintf("%s/?post_id=%s", strings.TrimRight(n.frontendURL, "/"), url.QueryEscape(post.ID)),
	}

	buf, err := json.Marshal(p)
	if err != nil {
		log.Printf("Failed to encode notification payload: %v", err)
		sentry.CaptureException(fmt.Errorf("encode notification payload: %w", err))
		return
	}

	endpoint := strings.TrimRight(n.baseURL, "/") + sendPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		log.Printf("Failed to build notification request: %v", err)
		sentry.CaptureException(fmt.Errorf("build notification request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		log.Printf("Notification request failed: %v", err)
		sentry.CaptureException(fmt.Errorf("send notification: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("Notification endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		sentry.CaptureException(fmt.Errorf("notification endpoint returned %s", resp.Status))
		return
	}
	log.Printf("Notification sent for post %s", post.ID)
}
