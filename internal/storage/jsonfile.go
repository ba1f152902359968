// Package storage provides the persistence backends for the subscription
// store: a JSON file compatible with the legacy on-disk shape, and a SQLite
// database.
package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"podradio/internal/domain"
)

type subscriptionRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FeedURL     string `json:"feedUrl"`
	Description string `json:"description"`
	LastUpdated int64  `json:"lastUpdated"`
	Enabled     bool   `json:"enabled"`
}

type fileRecord struct {
	CurrentIndex  int                  `json:"currentIndex"`
	Subscriptions []subscriptionRecord `json:"subscriptions"`
}

// JSONFile persists subscriptions as a single JSON document. A missing file
// loads as an empty store.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (f *JSONFile) Load() ([]domain.Subscription, int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, 0, err
	}

	subs := make([]domain.Subscription, 0, len(record.Subscriptions))
	for _, r := range record.Subscriptions {
		subs = append(subs, domain.Subscription{
			ID:          r.ID,
			Name:        r.Name,
			FeedURL:     r.FeedURL,
			Description: r.Description,
			LastUpdated: time.Unix(r.LastUpdated, 0),
			Enabled:     r.Enabled,
		})
	}

	return subs, record.CurrentIndex, nil
}

// Save writes the whole store atomically (write to a temp file, then rename).
func (f *JSONFile) Save(subs []domain.Subscription, currentIndex int) error {
	record := fileRecord{
		CurrentIndex:  currentIndex,
		Subscriptions: make([]subscriptionRecord, 0, len(subs)),
	}
	for _, sub := range subs {
		record.Subscriptions = append(record.Subscriptions, subscriptionRecord{
			ID:          sub.ID,
			Name:        sub.Name,
			FeedURL:     sub.FeedURL,
			Description: sub.Description,
			LastUpdated: sub.LastUpdated.Unix(),
			Enabled:     sub.Enabled,
		})
	}

	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	temp := f.path + ".tmp"
	if err := os.WriteFile(temp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(temp, f.path)
}
