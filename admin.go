package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var listingDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

const listingSelector = "ul.list_post"

// Browser is an authenticated page session
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
}

// AdminReader lists every post, including private ones, by walking the
// paginated admin console of a blog
type AdminReader struct {
	browser        Browser
	blogName       string
	listingTimeout time.Duration
	listingSettle  time.Duration
	pageSettle     time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewAdminReader creates a reader over an already logged-in browser
func NewAdminReader(browser Browser, blogName string, settings BrowserSettings) *AdminReader {
	return &AdminReader{
		browser:        browser,
		blogName:       blogName,
		listingTimeout: durationOr(settings.ListingTimeout, 10*time.Second),
		listingSettle:  durationOr(settings.ListingSettle, 2*time.Second),
		pageSettle:     durationOr(settings.PageSettle, 2500*time.Millisecond),
		now:            time.Now,
		sleep:          sleepContext,
	}
}

func (r *AdminReader) origin() string {
	return fmt.Sprintf("https://%s.tistory.com", r.blogName)
}

// List scans listing pages until there is no link to the next page
func (r *AdminReader) List(ctx context.Context) ([]PostSummary, error) {
	current := r.origin() + "/manage/posts"
	if err := r.browser.Navigate(ctx, current); err != nil {
		return nil, &FetchError{Source: current, Err: err}
	}
	if err := r.sleep(ctx, r.listingSettle); err != nil {
		return nil, &FetchError{Source: current, Err: err}
	}

	var all []PostSummary
	for page := 1; ; page++ {
		log.Printf("→ Scanning page %d (%d posts so far)", page, len(all))

		if err := r.browser.WaitReady(ctx, listingSelector, r.listingTimeout); err != nil {
			if page == 1 || ctx.Err() != nil {
				return nil, &FetchError{Source: current, Err: fmt.Errorf("post listing did not load: %w", err)}
			}
			log.Printf("⚠ Page %d did not load, stopping: %v", page, err)
			break
		}

		html, err := r.browser.HTML(ctx)
		if err != nil {
			return nil, &FetchError{Source: current, Err: err}
		}

		items, next, err := r.parseListing(html, current, page+1)
		if err != nil {
			return nil, &FetchError{Source: current, Err: err}
		}
		if len(items) == 0 {
			log.Printf("✓ Page %d lists no posts", page)
			break
		}
		all = append(all, items...)

		if next == "" {
			debugLog("no link to page %d", page+1)
			break
		}
		if err := r.browser.Navigate(ctx, next); err != nil {
			log.Printf("✗ Moving to page %d failed: %v", page+1, err)
			break
		}
		if err := r.sleep(ctx, r.pageSettle); err != nil {
			return nil, &FetchError{Source: next, Err: err}
		}
		current = next
	}

	log.Printf("✓ Collected %d posts", len(all))
	return all, nil
}

// parseListing extracts the posts of one listing page and the absolute URL of
// page nextPage, or "" when the page has no such link
func (r *AdminReader) parseListing(html, pageURL string, nextPage int) ([]PostSummary, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parsing listing: %w", err)
	}

	var posts []PostSummary
	doc.Find(listingSelector + " li").Each(func(i int, item *goquery.Selection) {
		if post, ok := r.parseItem(item); ok {
			posts = append(posts, post)
		}
	})

	nextPattern := regexp.MustCompile(fmt.Sprintf(`[?&]page=%d(&|$)`, nextPage))
	var next string
	doc.Find(".list_paging a, .link_paging").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, ok := link.Attr("href")
		if !ok || !nextPattern.MatchString(href) {
			return true
		}
		next = resolveURL(pageURL, href)
		return false
	})

	return posts, next, nil
}

func (r *AdminReader) parseItem(item *goquery.Selection) (PostSummary, bool) {
	link := item.Find("a.link_cont").First()
	if link.Length() == 0 {
		link = item.Find("a.link_title").First()
	}
	if link.Length() == 0 {
		return PostSummary{}, false
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return PostSummary{}, false
	}
	if strings.HasPrefix(href, "/") {
		href = r.origin() + href
	}

	status := StatusPublic
	switch {
	case item.Find(".ico_private").Length() > 0:
		status = StatusPrivate
	case item.Find(".ico_secret").Length() > 0:
		status = StatusProtected
	}

	date := r.now().Format(dateLayout)
	item.Find(".txt_info").EachWithBreak(func(i int, info *goquery.Selection) bool {
		if match := listingDatePattern.FindString(info.Text()); match != "" {
			date = match
			return false
		}
		if dotted, ok := parseDottedDate(info.Text()); ok {
			date = dotted
			return false
		}
		return true
	})

	return PostSummary{
		Title:  strings.TrimSpace(link.Text()),
		URL:    href,
		Date:   date,
		Status: status,
	}, true
}

// BrowserFetcher opens post pages in the logged-in browser so private posts are readable
type BrowserFetcher struct {
	browser Browser
	settle  time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBrowserFetcher creates a PageFetcher backed by a browser session
func NewBrowserFetcher(browser Browser, settings BrowserSettings) *BrowserFetcher {
	return &BrowserFetcher{
		browser: browser,
		settle:  durationOr(settings.PostSettle, 1500*time.Millisecond),
		sleep:   sleepContext,
	}
}

// FetchPage navigates to url and returns the rendered document
func (f *BrowserFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	if err := f.browser.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("opening %s: %w", url, err)
	}
	if err := f.sleep(ctx, f.settle); err != nil {
		return "", err
	}
	return f.browser.HTML(ctx)
}

func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
