// Package feeds loads podcast episodes from RSS/Atom feeds.
package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"podradio/internal/domain"
)

// Loader fetches and parses a feed URL into episodes. Episodes keep the
// feed's natural item order; the first one is treated as the latest.
type Loader struct {
	parser *gofeed.Parser
}

func NewLoader(userAgent string) *Loader {
	parser := gofeed.NewParser()
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return &Loader{parser: parser}
}

func (l *Loader) LoadEpisodes(ctx context.Context, feedURL string) ([]domain.Episode, error) {
	parsed, err := l.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	episodes := make([]domain.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		mediaURL := enclosureURL(item)
		if mediaURL == "" {
			continue
		}

		episode := domain.Episode{
			Title:       strings.TrimSpace(item.Title),
			URL:         mediaURL,
			Description: strings.TrimSpace(item.Description),
			PubDate:     item.Published,
			GUID:        item.GUID,
		}
		if item.ITunesExt != nil {
			episode.Duration = item.ITunesExt.Duration
		}
		episodes = append(episodes, episode)
	}

	return episodes, nil
}

// enclosureURL picks the audio enclosure, falling back to any enclosure and
// finally the item link.
func enclosureURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return item.Link
}
