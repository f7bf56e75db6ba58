package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alovak/cardprofile/profile/models"
)

const (
	// DefaultCardKey is the fixed key of the single card document.
	DefaultCardKey = "user-card"
	// healthKey holds the throwaway health-probe document, kept apart from
	// the card itself.
	healthKey = "connection-test"
)

// Client exposes the card document operations over a Store. Every
// operation addresses the one fixed card key; there is no multi-card
// model and no local caching, each Fetch is a live round trip.
type Client struct {
	store Store
	key   string
	now   func() time.Time
}

func NewClient(store Store, key string) *Client {
	if key == "" {
		key = DefaultCardKey
	}
	return &Client{store: store, key: key, now: time.Now}
}

// SetClock overrides the timestamp source. Tests only.
func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Fetch returns the stored record, or ErrNotFound when no card exists yet.
func (c *Client) Fetch(ctx context.Context) (*models.Record, error) {
	doc, err := c.store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching card document: %w", err)
	}
	rec := &models.Record{}
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, fmt.Errorf("decoding card document: %w", err)
	}
	return rec, nil
}

// Upsert overwrites the card document. lastUpdated is refreshed on every
// save; createdAt is kept from the existing document when the caller does
// not carry one, and initialized on the first save.
func (c *Client) Upsert(ctx context.Context, rec *models.Record) error {
	now := c.now()
	rec.LastUpdated = now
	if rec.CreatedAt.IsZero() {
		existing, err := c.Fetch(ctx)
		switch {
		case err == nil && !existing.CreatedAt.IsZero():
			rec.CreatedAt = existing.CreatedAt
		case err == nil || errors.Is(err, ErrNotFound):
			rec.CreatedAt = now
		default:
			return err
		}
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding card document: %w", err)
	}
	if err := c.store.Set(ctx, c.key, doc); err != nil {
		return fmt.Errorf("writing card document: %w", err)
	}
	return nil
}

// Patch merges fields into the existing document and refreshes lastUpdated.
// Patching an absent document is a hard ErrNotFound, never a create.
func (c *Client) Patch(ctx context.Context, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["lastUpdated"] = c.now()
	patch, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}
	if err := c.store.Merge(ctx, c.key, patch); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("patching card document: %w", err)
	}
	return nil
}

// Delete removes the card document. Deleting an absent card succeeds, so a
// repeated delete never surfaces an error.
func (c *Client) Delete(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting card document: %w", err)
	}
	return nil
}

// HealthCheck probes the store with a throwaway write plus delete on the
// diagnostic key. Diagnostics only; the save/load flow never calls this.
func (c *Client) HealthCheck(ctx context.Context) error {
	probe, err := json.Marshal(map[string]any{
		"timestamp": c.now(),
		"message":   "Connection test successful",
	})
	if err != nil {
		return fmt.Errorf("encoding probe: %w", err)
	}
	if err := c.store.Set(ctx, healthKey, probe); err != nil {
		return fmt.Errorf("health check write: %w", err)
	}
	if err := c.store.Delete(ctx, healthKey); err != nil {
		return fmt.Errorf("health check delete: %w", err)
	}
	return nil
}
