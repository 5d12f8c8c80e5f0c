package feed

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/getsentry/sentry-go"

	"telefeed-sync/internal/config"
	"telefeed-sync/internal/telegram"
)

// Syncer reconciles the channel's recent messages against the persisted
// post set: it classifies candidates, resolves their images, upserts them
// in one batch and republishes the full snapshot. One Run is one scheduled
// invocation; there is no state kept between runs.
type Syncer struct {
	store      PostStore
	images     ImageUploader
	publisher  SnapshotPublisher
	notifier   Notifier
	padWidth   int
	loc        *time.Location
	fetchMode  string
	fetchLimit int
	now        func() time.Time
}

// SyncerDeps holds the dependencies required by the Syncer.
type SyncerDeps struct {
	Store      PostStore
	Images     ImageUploader
	Publisher  SnapshotPublisher
	Notifier   Notifier
	PadWidth   int
	Location   *time.Location
	FetchMode  string
	FetchLimit int
}

// NewSyncer creates a Syncer from its dependencies.
func NewSyncer(deps SyncerDeps) (*Syncer, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("post store cannot be nil")
	}
	if deps.Images == nil {
		return nil, fmt.Errorf("image uploader cannot be nil")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("snapshot publisher cannot be nil")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if deps.PadWidth <= 0 {
		return nil, fmt.Errorf("pad width must be positive")
	}
	if deps.Location == nil {
		return nil, fmt.Errorf("location cannot be nil")
	}
	if deps.FetchLimit <= 0 {
		return nil, fmt.Errorf("fetch limit must be positive")
	}
	return &Syncer{
		store:      deps.Store,
		images:     deps.Images,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		padWidth:   deps.PadWidth,
		loc:        deps.Location,
		fetchMode:  deps.FetchMode,
		fetchLimit: deps.FetchLimit,
		now:        time.Now,
	}, nil
}

// Run executes one reconciliation pass against the channel source.
func (s *Syncer) Run(ctx context.Context, src telegram.Source) error {
	start := s.now()
	log.Printf("Sync run started at %s", start.In(s.loc).Format("2006-01-02 15:04:05 MST"))

	existing, err := s.store.LoadExisting(ctx)
	if err != nil {
		return fmt.Errorf("load existing posts: %w", err)
	}
	log.Printf("Loaded %d existing posts", len(existing))

	var msgs []telegram.Message
	switch s.fetchMode {
	case config.FetchModeDay:
		msgs, err = src.MessagesOn(ctx, s.now().In(s.loc))
	default:
		msgs, err = src.RecentMessages(ctx, s.fetchLimit)
	}
	if err != nil {
		return fmt.Errorf("fetch channel messages: %w", err)
	}
	log.Printf("Fetched %d messages from channel", len(msgs))

	candidates := s.classify(msgs, existing)

	var latest *Post
	if len(candidates) == 0 {
		log.Println("No posts need to be created or updated.")
	} else {
		log.Printf("Processing %d candidate messages", len(candidates))
		posts := make([]Post, 0, len(candidates))
		for _, cand := range candidates {
			post := s.resolve(ctx, src, cand, existing)
			posts = append(posts, post)
			if latest == nil || post.ID > latest.ID {
				p := post
				latest = &p
			}
		}
		if err := s.store.UpsertBatch(ctx, posts); err != nil {
			return fmt.Errorf("upsert post batch: %w", err)
		}
		log.Printf("Upserted %d posts", len(posts))
	}

	all, err := s.store.LoadAllSorted(ctx)
	if err != nil {
		return fmt.Errorf("load full post collection: %w", err)
	}
	publicURL, err := s.publisher.Publish(ctx, all)
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	log.Printf("Snapshot with %d posts published: %s", len(all), publicURL)

	if latest != nil {
		s.notifier.NotifyLatest(ctx, *latest)
	} else {
		log.Println("Nothing changed this run, not triggering a notification.")
	}

	log.Printf("Sync run finished in %s", s.now().Sub(start).Round(time.Millisecond))
	return nil
}

// candidate pairs a content message with its precomputed composite id.
type candidate struct {
	msg telegram.Message
	id  string
}

// classify keeps content-bearing messages that are either unseen or missing
// a required image URL, ordered by descending composite id so the first
// element is the newest touched post.
func (s *Syncer) classify(msgs []telegram.Message, existing map[string]Post) []candidate {
	var out []candidate
	for _, msg := range msgs {
		if msg.Text == "" && !msg.HasPhoto() {
			continue
		}
		if !FitsPadWidth(msg.ID, s.padWidth) {
			log.Printf("WARN: message id %d exceeds pad width %d; composite id ordering is no longer guaranteed", msg.ID, s.padWidth)
			sentry.CaptureMessage(fmt.Sprintf("native message id %d exceeds pad width %d", msg.ID, s.padWidth))
		}
		id := CompositeID(msg.Date, msg.ID, s.padWidth, s.loc)
		prev, seen := existing[id]
		if !seen || (msg.HasPhoto() && prev.Image == nil) {
			out = append(out, candidate{msg: msg, id: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id > out[j].id })
	return out
}

// resolve builds the Post for a candidate, reusing an already stored image
// URL or uploading the photo. Image failures are per-item: the post is
// still returned, just without an image, and a later run re-flags it.
func (s *Syncer) resolve(ctx context.Context, src telegram.Source, cand candidate, existing map[string]Post) Post {
	post := Post{
		ID:   cand.id,
		Date: cand.msg.Date.In(s.loc).Format(DateLayout),
		Text: cand.msg.Text,
	}
	if prev, ok := existing[cand.id]; ok && prev.Image != nil {
		post.Image = prev.Image
		return post
	}
	if !cand.msg.HasPhoto() {
		return post
	}

	data, err := src.DownloadPhoto(ctx, cand.msg)
	if err != nil {
		log.Printf("[Msg:%d] Photo download failed: %v", cand.msg.ID, err)
		sentry.CaptureException(fmt.Errorf("download photo for message %d: %w", cand.msg.ID, err))
		return post
	}
	fileName := PhotoFileName(cand.msg.Date, cand.msg.ID, cand.msg.Text, s.loc)
	imageURL, err := s.images.Upload(ctx, data, fileName)
	if err != nil {
		log.Printf("[Msg:%d] Image upload failed: %v", cand.msg.ID, err)
		sentry.CaptureException(fmt.Errorf("upload image for message %d: %w", cand.msg.ID, err))
		return post
	}
	log.Printf("[Msg:%d] Image uploaded: %s", cand.msg.ID, imageURL)
	post.Image = &imageURL
	return post
}
