package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mmcdole/gofeed"
)

const dateLayout = "2006-01-02"

// Source names accepted by --source
const (
	SourceFeed  = "feed"
	SourceAdmin = "admin"
)

// SourceReader lists candidate posts
type SourceReader interface {
	List(ctx context.Context) ([]PostSummary, error)
}

// FeedReader lists posts from an RSS/Atom feed
type FeedReader struct {
	feedURL    string
	feedParser *gofeed.Parser
	now        func() time.Time
}

// NewFeedReader creates a reader for the given feed URL
func NewFeedReader(feedURL string) *FeedReader {
	return &FeedReader{
		feedURL:    feedURL,
		feedParser: gofeed.NewParser(),
		now:        time.Now,
	}
}

// List fetches and parses the feed
func (r *FeedReader) List(ctx context.Context) ([]PostSummary, error) {
	log.Printf("→ Loading feed %s", r.feedURL)
	feed, err := r.feedParser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, &FetchError{Source: r.feedURL, Err: err}
	}
	if feed == nil {
		return nil, &FetchError{Source: r.feedURL, Err: fmt.Errorf("empty feed document")}
	}

	posts := make([]PostSummary, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		posts = append(posts, PostSummary{
			Title: item.Title,
			URL:   item.Link,
			Date:  r.itemDate(item),
		})
	}

	log.Printf("✓ Feed lists %d posts", len(posts))
	return posts, nil
}

// itemDate uses the publish date, then the update date, then today
func (r *FeedReader) itemDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(dateLayout)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(dateLayout)
	default:
		return r.now().Format(dateLayout)
	}
}
