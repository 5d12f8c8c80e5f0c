package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telefeed-sync/internal/feed"
	"telefeed-sync/internal/locales"
)

func strPtr(s string) *string { return &s }

func TestNotifyLatest(t *testing.T) {
	locales.Init("en")
	ctx := context.Background()

	t.Run("SendsFullPayload", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &gotBody))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		n := NewPushNotifier(srv.URL, "https://feed.example.com", "en")
		n.NotifyLatest(ctx, feed.Post{
			ID:    "2024-03-05_00042",
			Date:  "2024-03-05",
			Text:  "fresh post",
			Image: strPtr("https://img/42.jpg"),
		})

		assert.Equal(t, "/send-daily-notification", gotPath)
		assert.Equal(t, "fresh post", gotBody["body"])
		assert.Equal(t, "https://img/42.jpg", gotBody["image"])
		assert.Equal(t, "https://feed.example.com/?post_id=2024-03-05_00042", gotBody["url"])
		assert.NotEmpty(t, gotBody["title"])
	})

	t.Run("EmptyTextUsesFallbackBody", func(t *testing.T) {
		var gotBody map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n := NewPushNotifier(srv.URL, "https://feed.example.com", "en")
		n.NotifyLatest(ctx, feed.Post{ID: "2024-03-05_00043", Date: "2024-03-05"})

		assert.NotEmpty(t, gotBody["body"])
	})

	t.Run("NullImageIsOmitted", func(t *testing.T) {
		var gotBody map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n := NewPushNotifier(srv.URL, "https://feed.example.com", "en")
		n.NotifyLatest(ctx, feed.Post{ID: "2024-03-05_00044", Date: "2024-03-05", Text: "no image"})

		_, hasImage := gotBody["image"]
		assert.False(t, hasImage, "null image must not appear in the payload")
	})

	t.Run("EndpointErrorIsSwallowed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "push service down", http.StatusBadGateway)
		}))
		defer srv.Close()

		n := NewPushNotifier(srv.URL, "https://feed.example.com", "en")
		assert.NotPanics(t, func() {
			n.NotifyLatest(ctx, feed.Post{ID: "2024-03-05_00045", Date: "2024-03-05", Text: "x"})
		})
	})

	t.Run("DisabledWithoutBaseURL", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		n := NewPushNotifier("", "https://feed.example.com", "en")
		n.NotifyLatest(ctx, feed.Post{ID: "2024-03-05_00046", Date: "2024-03-05", Text: "x"})

		assert.False(t, called)
	})
}
