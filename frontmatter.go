package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CategorySwing     = "SWING"
	CategoryWriteup   = "Writeup"
	CategorySelfStudy = "Self-study"
	CategoryOther     = "+"
)

var (
	writeupKeywords = []string{"ctf", "wargame", "writeup", "write-up", "dreamhack", "pwnable", "hackthebox", "picoctf", "flag{", "워게임"}
	studyKeywords   = []string{"study", "공부", "정리", "algorithm", "알고리즘", "lecture", "강의", "```", "<code", "<pre"}

	nonSlugChars = regexp.MustCompile(`[^A-Za-z0-9-]`)
	dashRuns     = regexp.MustCompile(`-{2,}`)
	nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)
)

// classifyCategory applies the category priority SWING, Writeup, Self-study, +
func classifyCategory(title, content string) string {
	text := strings.ToLower(title + "\n" + content)
	if strings.Contains(text, "swing") {
		return CategorySwing
	}
	for _, kw := range writeupKeywords {
		if strings.Contains(text, kw) {
			return CategoryWriteup
		}
	}
	for _, kw := range studyKeywords {
		if strings.Contains(text, kw) {
			return CategorySelfStudy
		}
	}
	return CategoryOther
}

// BuildFilename names a Jekyll post file
func BuildFilename(date, slug string) string {
	return fmt.Sprintf("%s-%s.md", date, slug)
}

// sanitizeSlug drops every character outside [A-Za-z0-9-] and tidies dashes
func sanitizeSlug(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.TrimSpace(s), "")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// localSlug builds a kebab-case slug from the ASCII letters and digits of title
func localSlug(title string) string {
	s := nonAlnumRuns.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "post"
	}
	return s
}

// stripCodeFence removes a ```markdown wrapper some models put around the document
func stripCodeFence(doc string) string {
	trimmed := strings.TrimSpace(doc)
	if !strings.HasPrefix(trimmed, "```") {
		return doc
	}
	firstLine, rest, found := strings.Cut(trimmed, "\n")
	if !found {
		return doc
	}
	lang := strings.TrimSpace(strings.TrimPrefix(firstLine, "```"))
	if lang != "" && lang != "markdown" && lang != "md" {
		return doc
	}
	rest = strings.TrimRight(rest, " \t\n")
	if !strings.HasSuffix(rest, "```") {
		return doc
	}
	return strings.TrimRight(strings.TrimSuffix(rest, "```"), "\n") + "\n"
}

// splitFrontMatter returns the YAML between the leading --- lines and the rest
func splitFrontMatter(doc string) (header, body string, ok bool) {
	doc = strings.TrimLeft(doc, "\ufeff \t\n")
	if !strings.HasPrefix(doc, "---\n") {
		return "", doc, false
	}
	rest := doc[len("---\n"):]
	if strings.HasPrefix(rest, "---\n") {
		return "", rest[len("---\n"):], true
	}
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", doc, false
	}
	header = rest[:end+1]
	body = rest[end+len("\n---"):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && strings.TrimSpace(body[:nl]) == "" {
		body = body[nl+1:]
	} else if strings.TrimSpace(body) == "" {
		body = ""
	}
	return header, body, true
}

// RepairFrontMatter makes sure doc starts with complete front matter carrying
// the literal title. Missing keys are filled, and a document without any front
// matter gets one built locally.
func RepairFrontMatter(doc, title, date string) (string, error) {
	doc = stripCodeFence(doc)
	header, body, found := splitFrontMatter(doc)

	mapping := &yaml.Node{Kind: yaml.MappingNode}
	if found && strings.TrimSpace(header) != "" {
		var parsed yaml.Node
		if err := yaml.Unmarshal([]byte(header), &parsed); err != nil {
			debugLog("front matter does not parse, rebuilding it: %v", err)
		} else if len(parsed.Content) == 1 && parsed.Content[0].Kind == yaml.MappingNode {
			mapping = parsed.Content[0]
		}
	}

	setScalar(mapping, "layout", "post", false)
	setScalar(mapping, "title", title, true)
	if lookup(mapping, "categories") == nil {
		appendKey(mapping, "categories", flowSequence(classifyCategory(title, body)))
	}
	if lookup(mapping, "tags") == nil {
		appendKey(mapping, "tags", flowSequence())
	}
	setScalar(mapping, "last_modified_at", date, false)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}

	return "---\n" + buf.String() + "---\n\n" + strings.TrimLeft(body, "\n"), nil
}

// ParseFrontMatter decodes the front matter of a staged post
func ParseFrontMatter(doc string) (map[string]any, error) {
	header, _, found := splitFrontMatter(doc)
	if !found {
		return nil, fmt.Errorf("no front matter")
	}
	out := map[string]any{}
	if err := yaml.Unmarshal([]byte(header), &out); err != nil {
		return nil, fmt.Errorf("parsing front matter: %w", err)
	}
	return out, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func appendKey(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// setScalar sets key to value. Without force an existing non-empty value is kept.
func setScalar(mapping *yaml.Node, key, value string, force bool) {
	scalar := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if key == "title" {
		scalar.Tag = "!!str"
		scalar.Style = yaml.DoubleQuotedStyle
	}
	node := lookup(mapping, key)
	if node == nil {
		appendKey(mapping, key, scalar)
		return
	}
	if !force && node.Kind == yaml.ScalarNode && strings.TrimSpace(node.Value) != "" {
		return
	}
	*node = *scalar
}

func flowSequence(items ...string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, item := range items {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item})
	}
	return seq
}
