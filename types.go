package main

import (
	"fmt"
	"time"
)

// PostStatus is the visibility of a post in the admin console
type PostStatus string

const (
	StatusPublic    PostStatus = "public"
	StatusProtected PostStatus = "protected"
	StatusPrivate   PostStatus = "private"
)

// PostSummary is one entry of a post listing
type PostSummary struct {
	Title  string
	URL    string
	Date   string     // YYYY-MM-DD
	Status PostStatus // empty for feed listings
}

// ExtractedContent is the isolated article body of a single post
type ExtractedContent struct {
	Title string
	HTML  string
	Date  string
}

// MarkdownArtifact is a converted post ready to be staged
type MarkdownArtifact struct {
	Filename string
	Body     string
}

// ProcessingStatus represents the outcome status of processing a post
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusSkipped ProcessingStatus = "skipped"
	StatusError   ProcessingStatus = "error"
)

// PostResult tracks the outcome of processing each post
type PostResult struct {
	Post     PostSummary
	Status   ProcessingStatus
	Filename string
	Error    error
}

// BatchReport aggregates the per-post results of one run
type BatchReport struct {
	RunID         string
	StartedAt     time.Time
	Results       []PostResult
	CommitMessage string
	Publish       *PublishResult
	PublishError  error
}

// Succeeded returns the results that were staged
func (r *BatchReport) Succeeded() []PostResult {
	var out []PostResult
	for _, res := range r.Results {
		if res.Status == StatusSuccess {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results that ended in an error
func (r *BatchReport) Failed() []PostResult {
	var out []PostResult
	for _, res := range r.Results {
		if res.Status == StatusError {
			out = append(out, res)
		}
	}
	return out
}

func (r *BatchReport) String() string {
	skipped := len(r.Results) - len(r.Succeeded()) - len(r.Failed())
	return fmt.Sprintf("%d staged, %d failed, %d skipped", len(r.Succeeded()), len(r.Failed()), skipped)
}
