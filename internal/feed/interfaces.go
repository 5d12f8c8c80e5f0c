package feed

import "context"

// PostStore is the persistence backend for the reconciled post set.
// Implementations must treat UpsertBatch as a single keyed batch: either
// the whole batch lands or the error aborts the run before publishing.
type PostStore interface {
	// LoadExisting returns all persisted posts indexed by composite id.
	LoadExisting(ctx context.Context) (map[string]Post, error)
	// UpsertBatch writes the candidates keyed by composite id.
	UpsertBatch(ctx context.Context, posts []Post) error
	// LoadAllSorted returns the full collection ordered by descending
	// composite id.
	LoadAllSorted(ctx context.Context) ([]Post, error)
}

// ImageUploader pushes an in-memory image to the external host and returns
// its durable URL.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, fileName string) (string, error)
}

// SnapshotPublisher republishes the ordered post list as a public JSON
// snapshot and returns its public URL.
type SnapshotPublisher interface {
	Publish(ctx context.Context, posts []Post) (string, error)
}

// Notifier announces the most recently touched post of a run. Failures are
// the notifier's problem: they must be logged and swallowed, never
// propagated into the run result.
type Notifier interface {
	NotifyLatest(ctx context.Context, post Post)
}
