package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tg"
)

// Message is the slice of a channel message this job cares about.
type Message struct {
	ID    int
	Date  time.Time
	Text  string
	Photo *tg.Photo
}

// HasPhoto reports whether the message carries a downloadable photo.
func (m Message) HasPhoto() bool { return m.Photo != nil }

// Source provides read access to a single channel's message history.
type Source interface {
	// RecentMessages returns up to limit content messages, newest first.
	RecentMessages(ctx context.Context, limit int) ([]Message, error)
	// MessagesOn returns the messages posted during the calendar day
	// containing the given instant, interpreted in its location.
	MessagesOn(ctx context.Context, day time.Time) ([]Message, error)
	// DownloadPhoto fetches the message's photo into memory.
	DownloadPhoto(ctx context.Context, msg Message) ([]byte, error)
}
