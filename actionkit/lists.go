package actionkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// ListEntry is one remote list as the directory sees it.
type ListEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListDirectory maintains the name→id mapping for remote lists. It is
// built lazily on first use via paginated fetch and mutated additively by
// Ensure; it is never invalidated during a run. Keys are exact strings:
// callers are expected to trim before lookup, and case is not folded.
type ListDirectory struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	byName map[string]int64
}

func NewListDirectory(client *Client, logger *slog.Logger) *ListDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListDirectory{client: client, logger: logger}
}

// Refresh rebuilds the full mapping from the remote list collection. An
// empty collection or a response without a meta block is a valid, complete
// directory.
func (d *ListDirectory) Refresh(ctx context.Context) error {
	if d == nil || d.client == nil {
		return fmt.Errorf("list directory is not initialized")
	}
	objects, err := d.client.collectPages(ctx, "list/", "?_limit=100")
	if err != nil {
		return err
	}
	byName := make(map[string]int64, len(objects))
	for _, raw := range objects {
		var entry ListEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode list entry: %w", err)
		}
		byName[entry.Name] = entry.ID
	}
	d.mu.Lock()
	d.byName = byName
	d.loaded = true
	d.mu.Unlock()
	d.logger.Info("list_directory_loaded", "count", len(byName))
	return nil
}

func (d *ListDirectory) ensureLoaded(ctx context.Context) error {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if loaded {
		return nil
	}
	return d.Refresh(ctx)
}

// Resolve returns the cached id for name, loading the directory first if
// it has not been built yet.
func (d *ListDirectory) Resolve(ctx context.Context, name string) (int64, bool, error) {
	if err := d.ensureLoaded(ctx); err != nil {
		return 0, false, err
	}
	d.mu.Lock()
	id, ok := d.byName[name]
	d.mu.Unlock()
	return id, ok, nil
}

// Ensure creates the named list remotely when it is not already cached.
// On success the id is re-fetched by exact name and cached; when creation
// fails the name stays unresolved, so a later lookup fails the record
// instead of silently dropping the membership.
func (d *ListDirectory) Ensure(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if err := d.ensureLoaded(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	_, ok := d.byName[name]
	d.mu.Unlock()
	if ok {
		return nil
	}

	d.logger.Info("creating_list", "name", name)
	if _, err := d.client.Do(ctx, http.MethodPost, "list", nil, map[string]any{"name": name}); err != nil {
		return fmt.Errorf("create list %q: %w", name, err)
	}

	params := url.Values{}
	params.Set("name", name)
	resp, err := d.client.Do(ctx, http.MethodGet, "list", params, nil)
	if err != nil {
		return fmt.Errorf("resolve created list %q: %w", name, err)
	}
	var page struct {
		Objects []ListEntry `json:"objects"`
	}
	if err := resp.Decode(&page); err != nil {
		return err
	}
	if len(page.Objects) == 0 {
		return fmt.Errorf("created list %q not found on re-fetch", name)
	}
	d.mu.Lock()
	d.byName[name] = page.Objects[0].ID
	d.mu.Unlock()
	return nil
}
