// Package imagehost uploads post images to ImgBB and hands back durable
// public URLs.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultEndpoint = "https://api.imgbb.com/1/upload"
	uploadTimeout   = 60 * time.Second
)

// Client is a thin ImgBB upload client.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// NewClient creates an ImgBB client for the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: uploadTimeout},
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the image bytes as a multipart form and returns the hosted
// URL. Any failure (transport, non-2xx, API rejection, malformed body)
// surfaces as an error; callers decide whether it is fatal.
func (c *Client) Upload(ctx context.Context, data []byte, fileName string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		return "", fmt.Errorf("create multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart form: %w", err)
	}

	endpoint := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s: unexpected status %s", fileName, resp.Status)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response for %s: %w", fileName, err)
	}
	if !parsed.Success {
		msg := parsed.Error.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("upload %s rejected: %s", fileName, msg)
	}
	if parsed.Data.URL == "" {
		return "", fmt.Errorf("upload %s: response carries no url", fileName)
	}
	return parsed.Data.URL, nil
}
