package main

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var infoDatePattern = regexp.MustCompile(`(\d{4}\.\s?\d{1,2}\.\s?\d{1,2})`)

// Extractor isolates the article body of a post page
type Extractor struct {
	fetcher             PageFetcher
	selectors           []string
	dateSelector        string
	readabilityFallback bool
}

// NewExtractor creates an extractor; selectors are tried in order and the first match wins
func NewExtractor(fetcher PageFetcher, settings ExtractSettings) *Extractor {
	return &Extractor{
		fetcher:             fetcher,
		selectors:           settings.Selectors,
		dateSelector:        settings.DateSelector,
		readabilityFallback: settings.ReadabilityFallback,
	}
}

// Extract fetches the post page and returns its article region
func (e *Extractor) Extract(ctx context.Context, post PostSummary) (*ExtractedContent, error) {
	page, err := e.fetcher.FetchPage(ctx, post.URL)
	if err != nil {
		return nil, &ExtractionError{URL: post.URL, Reason: "fetching page", Err: err}
	}
	return e.ExtractFromHTML(post, page)
}

// ExtractFromHTML runs the selector chain over an already fetched page
func (e *Extractor) ExtractFromHTML(post PostSummary, page string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, &ExtractionError{URL: post.URL, Reason: "parsing page", Err: err}
	}

	body, matched := e.findContent(doc)
	if !matched && e.readabilityFallback {
		body, matched = readabilityContent(page)
		if matched {
			debugLog("content of %s found by readability", post.URL)
		}
	}
	if !matched {
		return nil, &ExtractionError{URL: post.URL, Reason: "no content region"}
	}

	return &ExtractedContent{
		Title: post.Title,
		HTML:  body,
		Date:  e.refineDate(doc, post.Date),
	}, nil
}

// findContent returns the outer HTML of the first selector that matches
func (e *Extractor) findContent(doc *goquery.Document) (string, bool) {
	for _, selector := range e.selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		html, err := goquery.OuterHtml(sel)
		if err != nil {
			debugLog("rendering %s: %v", selector, err)
			continue
		}
		debugLog("content region matched %s", selector)
		return html, true
	}
	return "", false
}

// refineDate replaces the listing date by the one printed on the post, when present
func (e *Extractor) refineDate(doc *goquery.Document, fallback string) string {
	if e.dateSelector == "" {
		return fallback
	}
	info := doc.Find(e.dateSelector).First()
	if info.Length() == 0 {
		return fallback
	}
	if date, ok := parseDottedDate(info.Text()); ok {
		return date
	}
	return fallback
}

// parseDottedDate finds a "2024. 3. 1"-shaped date in text and returns it as 2024-03-01
func parseDottedDate(text string) (string, bool) {
	match := infoDatePattern.FindString(text)
	if match == "" {
		return "", false
	}
	raw := strings.ReplaceAll(match, " ", "")
	t, err := time.Parse("2006.1.2", raw)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

func readabilityContent(page string) (string, bool) {
	article, err := readability.FromReader(strings.NewReader(page), nil)
	if err != nil {
		debugLog("readability: %v", err)
		return "", false
	}
	if strings.TrimSpace(article.Content) == "" {
		return "", false
	}
	return article.Content, true
}

