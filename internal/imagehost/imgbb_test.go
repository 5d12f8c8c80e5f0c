package imagehost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{apiKey: "test-key", endpoint: srv.URL, http: srv.Client()}
}

func TestUploadSuccess(t *testing.T) {
	var gotKey, gotFileName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xD8}, data)

		w.Write([]byte(`{"success":true,"data":{"url":"https://img/42.jpg"}}`))
	}))
	defer srv.Close()

	url, err := newTestClient(srv).Upload(context.Background(), []byte{0xFF, 0xD8}, "2024-03-05_42_hello.jpg")

	require.NoError(t, err)
	assert.Equal(t, "https://img/42.jpg", url)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "2024-03-05_42_hello.jpg", gotFileName)
}

func TestUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	url, err := newTestClient(srv).Upload(context.Background(), []byte{0x01}, "x.jpg")

	assert.Empty(t, url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestUploadNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Upload(context.Background(), []byte{0x01}, "x.jpg")

	assert.Error(t, err)
}

func TestUploadMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Upload(context.Background(), []byte{0x01}, "x.jpg")

	assert.Error(t, err)
}

func TestUploadMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Upload(context.Background(), []byte{0x01}, "x.jpg")

	assert.Error(t, err)
}
