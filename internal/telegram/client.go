package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gotd/td/session"
	gotd "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"go.uber.org/ratelimit"

	"telefeed-sync/internal/config"
)

const historyPageSize = 100

// Client wraps a gotd MTProto client configured from a Telethon string
// session mounted as a secret file. The session must already be authorized;
// this job never performs interactive login.
type Client struct {
	channel string
	client  *gotd.Client
	limiter ratelimit.Limiter
}

// NewClient reads the session file and prepares an MTProto client.
func NewClient(cfg *config.Config) (*Client, error) {
	raw, err := os.ReadFile(cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	data, err := session.TelethonSession(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse telethon session: %w", err)
	}

	storage := new(session.StorageMemory)
	loader := session.Loader{Storage: storage}
	if err := loader.Save(context.Background(), data); err != nil {
		return nil, fmt.Errorf("prime session storage: %w", err)
	}

	rate := cfg.FetchRate
	if rate <= 0 {
		rate = 4
	}

	return &Client{
		channel: cfg.ChannelUsername,
		client:  gotd.NewClient(cfg.TelegramAPIID, cfg.TelegramAPIHash, gotd.Options{SessionStorage: storage}),
		limiter: ratelimit.New(rate),
	}, nil
}

// Run opens the MTProto session, verifies authorization, resolves the
// channel and hands a Source bound to it to fn. The session is closed when
// fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, src Source) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("check auth status: %w", err)
		}
		if !status.Authorized {
			return errors.New("telegram session is not authorized; re-export it and update the secret")
		}

		api := c.client.API()
		peer, err := resolveChannel(ctx, api, c.channel, c.limiter)
		if err != nil {
			return err
		}
		log.Printf("Resolved channel %q", c.channel)

		return fn(ctx, &channelSource{api: api, peer: peer, limiter: c.limiter})
	})
}

func resolveChannel(ctx context.Context, api *tg.Client, username string, limiter ratelimit.Limiter) (tg.InputPeerClass, error) {
	limiter.Take()
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("resolve channel %q: %w", username, err)
	}
	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("username %q did not resolve to a channel", username)
}

// channelSource implements Source over the raw MTProto API for one resolved
// channel peer.
type channelSource struct {
	api     *tg.Client
	peer    tg.InputPeerClass
	limiter ratelimit.Limiter
}

func (s *channelSource) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	var out []Message
	offsetID := 0
	for len(out) < limit {
		page := limit - len(out)
		if page > historyPageSize {
			page = historyPageSize
		}
		s.limiter.Take()
		res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     s.peer,
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		raw, err := historyMessages(res)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			break
		}
		for _, m := range raw {
			switch msg := m.(type) {
			case *tg.Message:
				offsetID = msg.ID
				out = append(out, fromTG(msg))
			case *tg.MessageService:
				offsetID = msg.ID
			case *tg.MessageEmpty:
				offsetID = msg.ID
			}
		}
		if len(raw) < page {
			// Reached the start of the channel.
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *channelSource) MessagesOn(ctx context.Context, day time.Time) ([]Message, error) {
	loc := day.Location()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	var out []Message
	offsetID := 0
	offsetDate := int(end.Unix())
	for {
		req := &tg.MessagesGetHistoryRequest{
			Peer:     s.peer,
			OffsetID: offsetID,
			Limit:    historyPageSize,
		}
		if offsetID == 0 {
			// First page is positioned by date; later pages follow the id cursor.
			req.OffsetDate = offsetDate
		}
		s.limiter.Take()
		res, err := s.api.MessagesGetHistory(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		raw, err := historyMessages(res)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			break
		}
		done := false
		for _, m := range raw {
			msg, ok := m.(*tg.Message)
			if !ok {
				if id, hasID := messageID(m); hasID {
					offsetID = id
				}
				continue
			}
			offsetID = msg.ID
			ts := time.Unix(int64(msg.Date), 0).In(loc)
			if ts.Before(start) {
				done = true
				break
			}
			if ts.Before(end) {
				out = append(out, fromTG(msg))
			}
		}
		if done || len(raw) < historyPageSize {
			break
		}
	}
	return out, nil
}

func (s *channelSource) DownloadPhoto(ctx context.Context, msg Message) ([]byte, error) {
	if msg.Photo == nil {
		return nil, errors.New("message has no photo")
	}
	thumb := largestPhotoSize(msg.Photo)
	if thumb == "" {
		return nil, errors.New("photo has no downloadable size")
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            msg.Photo.ID,
		AccessHash:    msg.Photo.AccessHash,
		FileReference: msg.Photo.FileReference,
		ThumbSize:     thumb,
	}
	var buf bytes.Buffer
	s.limiter.Take()
	if _, err := downloader.NewDownloader().Download(s.api, loc).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("download photo %d: %w", msg.Photo.ID, err)
	}
	return buf.Bytes(), nil
}

func fromTG(msg *tg.Message) Message {
	m := Message{
		ID:   msg.ID,
		Date: time.Unix(int64(msg.Date), 0),
		Text: msg.Message,
	}
	if media, ok := msg.Media.(*tg.MessageMediaPhoto); ok {
		if photo, ok := media.Photo.(*tg.Photo); ok {
			m.Photo = photo
		}
	}
	return m
}

func historyMessages(res tg.MessagesMessagesClass) ([]tg.MessageClass, error) {
	switch msgs := res.(type) {
	case *tg.MessagesChannelMessages:
		return msgs.Messages, nil
	case *tg.MessagesMessagesSlice:
		return msgs.Messages, nil
	case *tg.MessagesMessages:
		return msgs.Messages, nil
	default:
		return nil, fmt.Errorf("unexpected history response %T", res)
	}
}

func messageID(m tg.MessageClass) (int, bool) {
	switch msg := m.(type) {
	case *tg.Message:
		return msg.ID, true
	case *tg.MessageService:
		return msg.ID, true
	case *tg.MessageEmpty:
		return msg.ID, true
	}
	return 0, false
}

// largestPhotoSize picks the thumb type of the biggest available rendition.
func largestPhotoSize(p *tg.Photo) string {
	best := ""
	bestBytes := -1
	for _, s := range p.Sizes {
		switch sz := s.(type) {
		case *tg.PhotoSize:
			if sz.Size > bestBytes {
				bestBytes = sz.Size
				best = sz.Type
			}
		case *tg.PhotoSizeProgressive:
			max := 0
			for _, n := range sz.Sizes {
				if n > max {
					max = n
				}
			}
			if max > bestBytes {
				bestBytes = max
				best = sz.Type
			}
		}
	}
	return best
}
