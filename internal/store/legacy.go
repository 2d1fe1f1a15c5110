package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLegacyMaxBytes is the hard size ceiling of the legacy tier.
const DefaultLegacyMaxBytes = 256 * 1024

// legacySummaryEvents caps how many feed events the legacy backup keeps.
const legacySummaryEvents = 50

// ErrLegacyQuota indicates the legacy blob would exceed its size
// ceiling even after summary capping. Callers treat it as a degraded
// write, never a failure.
var ErrLegacyQuota = errors.New("legacy tier quota exceeded")

// legacyTier is the best-effort flat backup: one JSON blob at a fixed
// path with a hard size ceiling.
type legacyTier struct {
	path     string
	maxBytes int
}

func newLegacyTier(path string, maxBytes int) *legacyTier {
	if maxBytes <= 0 {
		maxBytes = DefaultLegacyMaxBytes
	}
	return &legacyTier{path: path, maxBytes: maxBytes}
}

// Read parses the legacy blob. Returns (nil, nil) when the file does
// not exist.
func (t *legacyTier) Read() (*Snapshot, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse legacy blob: %w", err)
	}
	return &snap, nil
}

// Write stores a size-capped summary of the snapshot. The feed is
// trimmed to the most recent events first; if the blob still exceeds
// the ceiling the write is skipped with ErrLegacyQuota.
func (t *legacyTier) Write(snap *Snapshot) error {
	summary := *snap
	if len(summary.Feed) > legacySummaryEvents {
		summary.Feed = summary.Feed[len(summary.Feed)-legacySummaryEvents:]
	}

	data, err := json.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("marshal legacy blob: %w", err)
	}

	if len(data) > t.maxBytes {
		// Retry without the feed at all before giving up
		summary.Feed = nil
		if data, err = json.Marshal(&summary); err != nil {
			return fmt.Errorf("marshal legacy blob: %w", err)
		}
		if len(data) > t.maxBytes {
			return ErrLegacyQuota
		}
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0644)
}

// Clear removes the legacy blob.
func (t *legacyTier) Clear() error {
	err := os.Remove(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
