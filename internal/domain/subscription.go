package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Subscription is one podcast feed the server knows about. Fields other than
// Enabled are fixed after creation; identity is derived from the feed URL so
// the same feed always maps to the same ID.
type Subscription struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FeedURL     string    `json:"feedUrl"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"-"`
	Enabled     bool      `json:"enabled"`
}

func NewSubscription(name, feedURL, description string) Subscription {
	return Subscription{
		ID:          SubscriptionID(feedURL),
		Name:        name,
		FeedURL:     feedURL,
		Description: description,
		LastUpdated: time.Now(),
		Enabled:     true,
	}
}

// SubscriptionID derives the stable identifier for a feed URL.
func SubscriptionID(feedURL string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(feedURL)))
	return "sub_" + hex.EncodeToString(sum[:8])
}

// Episode is a single playable item from a feed. The first episode in a
// loaded feed is treated as the latest one.
type Episode struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	PubDate     string `json:"pub_date,omitempty"`
	Duration    string `json:"duration,omitempty"`
	GUID        string `json:"guid,omitempty"`
}
