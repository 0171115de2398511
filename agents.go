package main

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Transformer converts article HTML into a Jekyll post
type Transformer struct {
	completer Completer
	prompt    string
	repair    bool
	converter *md.Converter
}

// NewTransformer creates a transformer. A nil completer converts locally with
// html-to-markdown and builds the front matter itself.
func NewTransformer(completer Completer, prompt string, repair bool) (*Transformer, error) {
	for _, variable := range []string{"{{.Title}}", "{{.Date}}"} {
		if !strings.Contains(prompt, variable) {
			return nil, fmt.Errorf("markdown system prompt must contain %s variable", variable)
		}
	}
	return &Transformer{
		completer: completer,
		prompt:    prompt,
		repair:    repair,
		converter: md.NewConverter("", true, nil),
	}, nil
}

// ToMarkdown returns the full post document for the normalized HTML
func (t *Transformer) ToMarkdown(ctx context.Context, content, title, date string) (string, error) {
	if t.completer == nil {
		return t.convertLocally(content, title, date)
	}

	log.Printf("→ Converting %q", title)
	systemPrompt := strings.ReplaceAll(t.prompt, "{{.Title}}", title)
	systemPrompt = strings.ReplaceAll(systemPrompt, "{{.Date}}", date)

	response, err := t.completer.Complete(ctx, systemPrompt, content)
	if err != nil {
		return "", &TransformError{Step: "markdown", Err: err}
	}
	if strings.TrimSpace(response) == "" {
		return "", &TransformError{Step: "markdown", Err: fmt.Errorf("empty response")}
	}

	doc := html.UnescapeString(response)
	if t.repair {
		repaired, err := RepairFrontMatter(doc, title, date)
		if err != nil {
			return "", &TransformError{Step: "markdown", Err: err}
		}
		doc = repaired
	} else if _, err := ParseFrontMatter(doc); err != nil {
		log.Printf("Warning: %q kept as returned, front matter unusable: %v", title, err)
	}
	return doc, nil
}

func (t *Transformer) convertLocally(content, title, date string) (string, error) {
	debugLog("converting %q without a completion service", title)
	body, err := t.converter.ConvertString(content)
	if err != nil {
		return "", &TransformError{Step: "markdown", Err: fmt.Errorf("html to markdown: %w", err)}
	}
	doc, err := RepairFrontMatter(html.UnescapeString(body), title, date)
	if err != nil {
		return "", &TransformError{Step: "markdown", Err: err}
	}
	return doc, nil
}

// Slugger turns titles into URL slugs
type Slugger struct {
	completer Completer
	prompt    string
}

// NewSlugger creates a slugger; a nil completer slugs locally
func NewSlugger(completer Completer, prompt string) *Slugger {
	return &Slugger{completer: completer, prompt: prompt}
}

// Slug returns a slug matching ^[A-Za-z0-9-]+$
func (s *Slugger) Slug(ctx context.Context, title string) (string, error) {
	if s.completer == nil {
		return localSlug(title), nil
	}

	response, err := s.completer.Complete(ctx, s.prompt, "Convert: "+title)
	if err != nil {
		return "", &TransformError{Step: "slug", Err: err}
	}

	slug := sanitizeSlug(response)
	if slug == "" {
		slug = localSlug(title)
		debugLog("slug response %q unusable, using %q", response, slug)
	}
	return slug, nil
}
