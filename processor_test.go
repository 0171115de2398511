package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

// pageMap is a PageFetcher over canned pages
type pageMap map[string]string

func (m pageMap) FetchPage(ctx context.Context, url string) (string, error) {
	page, ok := m[url]
	if !ok {
		return "", &HTTPError{StatusCode: 404, URL: url}
	}
	return page, nil
}

var srcPattern = regexp.MustCompile(`src="([^"]+)"`)

// modelStub answers slug prompts with slug and conversion prompts with a
// document whose images mirror the html it was given
func modelStub(slug, category string) Completer {
	return completerFunc(func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		if systemPrompt == defaultSlugPrompt {
			return slug + "\n", nil
		}
		title := regexp.MustCompile(`title: "([^"]*)"`).FindStringSubmatch(systemPrompt)[1]
		var body strings.Builder
		for _, m := range srcPattern.FindAllStringSubmatch(userPrompt, -1) {
			fmt.Fprintf(&body, "![image](%s)\n", m[1])
		}
		return fmt.Sprintf("---\nlayout: post\ntitle: \"%s\"\ncategories: [%s]\ntags: [ctf, pwn, writeup]\nlast_modified_at: 2024-01-15\n---\n\n%s", title, category, body.String()), nil
	})
}

func newTestProcessor(t *testing.T, pages pageMap, completer Completer, publisher *Publisher, options ProcessorOptions) (*Processor, *Staging) {
	t.Helper()
	staging := NewStaging(filepath.Join(t.TempDir(), "stage"))
	if publisher != nil {
		publisher.staging = staging
	}
	extractor := NewExtractor(pages, defaultSettingsValues().Extract)
	transformer, err := NewTransformer(completer, defaultMarkdownPrompt, true)
	assert.NilError(t, err)
	p := NewProcessor(extractor, transformer, NewSlugger(completer, defaultSlugPrompt), staging, publisher, nil, options)
	p.Logf = t.Logf
	return p, staging
}

const ctfPage = `<html><body>
<div class="tt_article_useless_p_margin">
<p>CTF writeup for the pwn challenge</p>
<img src="https://cdn.example/i?fname=https%3A%2F%2Freal.example%2Fpic.png" srcset="x 2x" width="800" style="width:100%">
</div></body></html>`

func TestProcessorCTFWriteup(t *testing.T) {
	repo := newMemoryRepo()
	publisher := NewPublisher(repo, nil, GitHubSettings{Branch: "backup", BaseBranch: "main"})
	publisher.Logf = t.Logf
	pages := pageMap{"https://blog.tistory.com/1": ctfPage}

	p, staging := newTestProcessor(t, pages, modelStub("ctf-writeup-example", "Writeup"), publisher, ProcessorOptions{})
	post := PostSummary{Title: "CTF Writeup Example", URL: "https://blog.tistory.com/1", Date: "2024-01-15"}

	report, err := p.Run(context.Background(), []PostSummary{post})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(report.Succeeded(), 1))

	result := report.Results[0]
	assert.Assert(t, strings.HasSuffix(result.Filename, "-ctf-writeup-example.md"))
	assert.Equal(t, result.Filename, "2024-01-15-ctf-writeup-example.md")
	assert.Equal(t, report.CommitMessage, "Add post: CTF Writeup Example")

	data, err := os.ReadFile(filepath.Join(staging.Root(), "_posts", result.Filename))
	assert.NilError(t, err)
	doc := string(data)
	assert.Assert(t, is.Contains(doc, "https://real.example/pic.png"))
	assert.Assert(t, !strings.Contains(doc, "fname="))
	assert.Assert(t, is.Contains(doc, "categories: [Writeup]"))

	fm, err := ParseFrontMatter(doc)
	assert.NilError(t, err)
	assert.Equal(t, fm["title"], "CTF Writeup Example")

	assert.Assert(t, report.PublishError == nil)
	assert.DeepEqual(t, report.Publish.Created, []string{"_posts/2024-01-15-ctf-writeup-example.md"})
	assert.Equal(t, report.Publish.PullRequestURL, "https://github.com/o/r/pull/1")
}

func TestProcessorContinuesAfterFailure(t *testing.T) {
	pages := pageMap{
		"https://blog.tistory.com/1": ctfPage,
		"https://blog.tistory.com/2": `<html><body><div class="sidebar">no article here</div></body></html>`,
		"https://blog.tistory.com/3": strings.Replace(ctfPage, "pwn", "second", 1),
	}
	p, _ := newTestProcessor(t, pages, modelStub("post", "Writeup"), nil, ProcessorOptions{})

	posts := []PostSummary{
		{Title: "one", URL: "https://blog.tistory.com/1", Date: "2024-01-01"},
		{Title: "two", URL: "https://blog.tistory.com/2", Date: "2024-01-02"},
		{Title: "missing", URL: "https://blog.tistory.com/404", Date: "2024-01-03"},
		{Title: "three", URL: "https://blog.tistory.com/3", Date: "2024-01-04"},
	}
	report, err := p.Run(context.Background(), posts)
	assert.NilError(t, err)

	assert.Assert(t, is.Len(report.Results, 4))
	assert.Assert(t, is.Len(report.Succeeded(), 2))
	assert.Assert(t, is.Len(report.Failed(), 2))

	var extractionErr *ExtractionError
	assert.Assert(t, errors.As(report.Results[1].Error, &extractionErr))
	assert.Equal(t, extractionErr.Reason, "no content region")
	var httpErr *HTTPError
	assert.Assert(t, errors.As(report.Results[2].Error, &httpErr))

	assert.Equal(t, report.CommitMessage, "Add 2 posts: one, three")
	assert.Assert(t, report.Publish == nil)
}

func TestProcessorNothingStagedSkipsPublish(t *testing.T) {
	repo := newMemoryRepo()
	publisher := NewPublisher(repo, nil, GitHubSettings{Branch: "backup", BaseBranch: "main"})
	p, _ := newTestProcessor(t, pageMap{}, modelStub("x", "+"), publisher, ProcessorOptions{})

	report, err := p.Run(context.Background(), []PostSummary{{Title: "gone", URL: "https://blog.tistory.com/9", Date: "2024-01-01"}})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(report.Failed(), 1))
	assert.Equal(t, report.CommitMessage, "")
	assert.Assert(t, report.Publish == nil)
	_, hasBackup := repo.branches["backup"]
	assert.Assert(t, !hasBackup, "publisher must not run")
}

func TestProcessorStagingClearedUnlessKept(t *testing.T) {
	pages := pageMap{"https://blog.tistory.com/1": ctfPage}
	post := []PostSummary{{Title: "one", URL: "https://blog.tistory.com/1", Date: "2024-01-01"}}

	for _, keep := range []bool{false, true} {
		t.Run(fmt.Sprintf("keep=%v", keep), func(t *testing.T) {
			p, staging := newTestProcessor(t, pages, modelStub("one", "+"), nil, ProcessorOptions{KeepStaging: keep})
			_, err := staging.Write(MarkdownArtifact{Filename: "2020-01-01-old.md", Body: "old"})
			assert.NilError(t, err)

			_, err = p.Run(context.Background(), post)
			assert.NilError(t, err)

			files, err := staging.Files()
			assert.NilError(t, err)
			if keep {
				assert.Assert(t, is.Len(files, 2))
			} else {
				assert.Assert(t, is.Len(files, 1))
				assert.Equal(t, files[0].Path, "_posts/2024-01-01-one.md")
			}
		})
	}
}

func TestProcessorRejectsConcurrentBatch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := completerFunc(func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		if systemPrompt == defaultSlugPrompt {
			close(entered)
			<-release
		}
		return "slug", nil
	})
	pages := pageMap{"https://blog.tistory.com/1": ctfPage}
	p, _ := newTestProcessor(t, pages, blocking, nil, ProcessorOptions{})
	posts := []PostSummary{{Title: "one", URL: "https://blog.tistory.com/1", Date: "2024-01-01"}}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), posts)
		done <- err
	}()

	<-entered
	_, err := p.Run(context.Background(), posts)
	assert.Assert(t, errors.Is(err, ErrBatchRunning))

	close(release)
	assert.NilError(t, <-done)
}

func TestProcessorCancellationBetweenPosts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cancelling := completerFunc(func(c context.Context, systemPrompt, userPrompt string) (string, error) {
		if systemPrompt == defaultSlugPrompt {
			calls++
			return "slug", nil
		}
		// the first post still completes after cancellation is requested
		cancel()
		return "---\ntitle: \"x\"\n---\nbody\n", nil
	})
	pages := pageMap{
		"https://blog.tistory.com/1": ctfPage,
		"https://blog.tistory.com/2": ctfPage,
	}
	p, _ := newTestProcessor(t, pages, cancelling, nil, ProcessorOptions{})

	report, err := p.Run(ctx, []PostSummary{
		{Title: "one", URL: "https://blog.tistory.com/1", Date: "2024-01-01"},
		{Title: "two", URL: "https://blog.tistory.com/2", Date: "2024-01-02"},
	})
	assert.Assert(t, errors.Is(err, context.Canceled))
	assert.Assert(t, is.Len(report.Results, 1))
	assert.Equal(t, report.Results[0].Status, StatusSuccess)
	assert.Equal(t, calls, 1)
}

func TestProcessorSkipMigrated(t *testing.T) {
	ledger := openTestLedger(t)
	pages := pageMap{"https://blog.tistory.com/1": ctfPage}
	post := []PostSummary{{Title: "one", URL: "https://blog.tistory.com/1", Date: "2024-01-01"}}

	p, _ := newTestProcessor(t, pages, modelStub("one", "+"), nil, ProcessorOptions{SkipMigrated: true})
	p.ledger = ledger

	first, err := p.Run(context.Background(), post)
	assert.NilError(t, err)
	assert.Equal(t, first.Results[0].Status, StatusSuccess)

	second, err := p.Run(context.Background(), post)
	assert.NilError(t, err)
	assert.Equal(t, second.Results[0].Status, StatusSkipped)
	assert.Equal(t, second.CommitMessage, "")

	entries, err := ledger.Recent(context.Background(), 10)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(entries, 1))
	assert.Equal(t, entries[0].RunID, first.RunID)
}

func TestCommitMessage(t *testing.T) {
	results := func(titles ...string) []PostResult {
		var out []PostResult
		for _, title := range titles {
			out = append(out, PostResult{Post: PostSummary{Title: title}, Status: StatusSuccess})
		}
		return out
	}

	tests := []struct {
		name   string
		titles []string
		want   string
	}{
		{name: "single post", titles: []string{"Hello"}, want: "Add post: Hello"},
		{name: "short list", titles: []string{"a", "b"}, want: "Add 2 posts: a, b"},
		{
			name:   "long list is truncated",
			titles: []string{"A fairly long first title", "Another fairly long second title"},
			want:   "Add 2 posts: A fairly long first title, Another fairly long sec...",
		},
		{
			name:   "truncation counts runes",
			titles: []string{strings.Repeat("가", 30), strings.Repeat("나", 30)},
			want:   "Add 2 posts: " + strings.Repeat("가", 30) + ", " + strings.Repeat("나", 18) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, CommitMessage(results(tt.titles...)), tt.want)
		})
	}
}
