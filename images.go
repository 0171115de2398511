package main

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// presentationAttrs are removed from every image; layout is left to the site theme
var presentationAttrs = []string{"srcset", "width", "height", "style", "onerror"}

// NormalizeImages rewrites proxied image sources to their real URL and strips
// responsive/layout attributes. It never fails: unparseable input is returned as-is.
func NormalizeImages(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		debugLog("normalize images: %v", err)
		return html
	}

	doc.Find("img").Each(func(i int, img *goquery.Selection) {
		for _, attr := range presentationAttrs {
			img.RemoveAttr(attr)
		}

		src, ok := img.Attr("src")
		if !ok || !strings.Contains(src, "fname=") {
			return
		}
		if real := unwrapImageURL(src); real != "" {
			img.SetAttr("src", real)
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		debugLog("normalize images: rendering: %v", err)
		return html
	}
	return out
}

// unwrapImageURL returns the decoded fname parameter of a CDN redirect URL,
// or "" when src carries none.
func unwrapImageURL(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil && len(q) == 0 {
		return ""
	}
	fname := q.Get("fname")
	if fname == "" {
		return ""
	}
	// the CDN double-encodes some targets
	if decoded, err := url.PathUnescape(fname); err == nil {
		return decoded
	}
	return fname
}
