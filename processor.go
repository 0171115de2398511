package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const commitSummaryRunes = 50

// ProcessorOptions tunes one Processor
type ProcessorOptions struct {
	KeepStaging  bool // append to the staging area instead of clearing it
	SkipMigrated bool // skip posts the ledger already has as migrated
}

// Processor runs selected posts through extraction, conversion and staging,
// then hands the staging area to the publisher
type Processor struct {
	extractor   *Extractor
	transformer *Transformer
	slugger     *Slugger
	staging     *Staging
	publisher   *Publisher // nil stages only
	ledger      *Ledger    // nil keeps no history
	options     ProcessorOptions
	Logf        func(format string, args ...any)

	mu  sync.Mutex
	now func() time.Time
}

// NewProcessor wires a pipeline together
func NewProcessor(extractor *Extractor, transformer *Transformer, slugger *Slugger,
	staging *Staging, publisher *Publisher, ledger *Ledger, options ProcessorOptions) *Processor {
	return &Processor{
		extractor:   extractor,
		transformer: transformer,
		slugger:     slugger,
		staging:     staging,
		publisher:   publisher,
		ledger:      ledger,
		options:     options,
		Logf:        log.Printf,
		now:         time.Now,
	}
}

// Run processes posts one after another. A failing post is recorded and the
// batch continues; cancellation is honoured between posts. Only one batch
// runs at a time.
func (p *Processor) Run(ctx context.Context, posts []PostSummary) (*BatchReport, error) {
	if !p.mu.TryLock() {
		return nil, ErrBatchRunning
	}
	defer p.mu.Unlock()

	report := &BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Results:   make([]PostResult, 0, len(posts)),
	}

	if !p.options.KeepStaging {
		if err := p.staging.Clear(); err != nil {
			return report, err
		}
	}

	p.Logf("→ Processing %d posts (run %s)", len(posts), report.RunID)
	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			p.Logf("✗ Cancelled after %d of %d posts", i, len(posts))
			return report, err
		}

		p.Logf("[%d/%d] Processing: %s", i+1, len(posts), post.Title)
		result := p.processPost(ctx, post)
		report.Results = append(report.Results, result)

		switch result.Status {
		case StatusSuccess:
			p.Logf("✓ Staged: %s", result.Filename)
		case StatusSkipped:
			p.Logf("→ Skipped (already migrated): %s", post.Title)
		case StatusError:
			p.Logf("✗ Failed %s: %v", post.Title, result.Error)
		}

		if p.ledger != nil && result.Status != StatusSkipped {
			if err := p.ledger.Record(ctx, report.RunID, result); err != nil {
				p.Logf("✗ Could not record history: %v", err)
			}
		}
	}

	succeeded := report.Succeeded()
	if len(succeeded) == 0 {
		p.Logf("✗ No post was staged, nothing to publish")
		return report, nil
	}
	report.CommitMessage = CommitMessage(succeeded)

	if p.publisher == nil {
		p.Logf("✓ Staged %d posts in %s", len(succeeded), p.staging.Root())
		return report, nil
	}

	p.Logf("→ Publishing %d posts", len(succeeded))
	report.Publish, report.PublishError = p.publisher.Publish(ctx, report.CommitMessage)
	if report.PublishError != nil {
		p.Logf("✗ Publish failed: %v", report.PublishError)
	}
	return report, nil
}

func (p *Processor) processPost(ctx context.Context, post PostSummary) PostResult {
	result := PostResult{Post: post, Status: StatusError}

	if p.options.SkipMigrated && p.ledger != nil {
		migrated, err := p.ledger.Migrated(ctx, post.URL)
		if err != nil {
			debugLog("ledger lookup: %v", err)
		} else if migrated {
			result.Status = StatusSkipped
			return result
		}
	}

	content, err := p.extractor.Extract(ctx, post)
	if err != nil {
		result.Error = err
		return result
	}

	slug, err := p.slugger.Slug(ctx, content.Title)
	if err != nil {
		result.Error = err
		return result
	}

	body, err := p.transformer.ToMarkdown(ctx, NormalizeImages(content.HTML), content.Title, content.Date)
	if err != nil {
		result.Error = err
		return result
	}

	artifact := MarkdownArtifact{Filename: BuildFilename(content.Date, slug), Body: body}
	if _, err := p.staging.Write(artifact); err != nil {
		result.Error = err
		return result
	}

	result.Status = StatusSuccess
	result.Filename = artifact.Filename
	return result
}

// CommitMessage summarizes the staged posts of a batch
func CommitMessage(succeeded []PostResult) string {
	if len(succeeded) == 1 {
		return "Add post: " + succeeded[0].Post.Title
	}
	titles := make([]string, len(succeeded))
	for i, r := range succeeded {
		titles[i] = r.Post.Title
	}
	summary := strings.Join(titles, ", ")
	if runes := []rune(summary); len(runes) > commitSummaryRunes {
		summary = string(runes[:commitSummaryRunes]) + "..."
	}
	return fmt.Sprintf("Add %d posts: %s", len(succeeded), summary)
}
