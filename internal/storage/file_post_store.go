package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"telefeed-sync/internal/feed"
)

// FilePostStore implements feed.PostStore over a local JSON file, for
// deployments without a document store. The file holds the same array
// shape as the published snapshot and is rewritten atomically.
type FilePostStore struct {
	path string
}

// NewFilePostStore creates a post store backed by the given file path.
func NewFilePostStore(path string) *FilePostStore {
	return &FilePostStore{path: path}
}

func (s *FilePostStore) load() ([]feed.Post, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var posts []feed.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return posts, nil
}

// LoadExisting reads the file into a composite-id index. A missing file is
// an empty store; a malformed file aborts rather than silently dropping
// history.
func (s *FilePostStore) LoadExisting(ctx context.Context) (map[string]feed.Post, error) {
	posts, err := s.load()
	if err != nil {
		return nil, err
	}
	index := make(map[string]feed.Post, len(posts))
	for _, post := range posts {
		if strings.TrimSpace(post.ID) == "" {
			log.Println("WARN: skipping stored post without a usable id")
			continue
		}
		index[post.ID] = post
	}
	return index, nil
}

// UpsertBatch merges the candidates into the file under their composite
// ids and rewrites it in one atomic rename.
func (s *FilePostStore) UpsertBatch(ctx context.Context, posts []feed.Post) error {
	if len(posts) == 0 {
		return nil
	}
	existing, err := s.LoadExisting(ctx)
	if err != nil {
		return err
	}
	for _, post := range posts {
		existing[post.ID] = post
	}
	merged := make([]feed.Post, 0, len(existing))
	for _, post := range existing {
		merged = append(merged, post)
	}
	sortPostsDesc(merged)
	return s.writeAtomic(merged)
}

// LoadAllSorted returns the file contents ordered by descending composite id.
func (s *FilePostStore) LoadAllSorted(ctx context.Context) ([]feed.Post, error) {
	posts, err := s.load()
	if err != nil {
		return nil, err
	}
	sortPostsDesc(posts)
	return posts, nil
}

func (s *FilePostStore) writeAtomic(posts []feed.Post) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".posts-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(posts); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode posts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func sortPostsDesc(posts []feed.Post) {
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
}
