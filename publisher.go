package main

import (
	"context"
	"errors"
	"log"
)

const pullRequestBody = "Batch Backup"

// PublishResult describes what one publish did on the remote repository
type PublishResult struct {
	Created            []string
	Updated            []string
	Failed             map[string]error
	PullRequestURL     string
	PullRequestExisted bool
}

// Publisher pushes the staging area to the backup branch and keeps one pull request open
type Publisher struct {
	repo    Repository
	staging *Staging
	branch  string
	base    string
	Logf    func(format string, args ...any)
}

// NewPublisher creates a publisher for the configured branch pair
func NewPublisher(repo Repository, staging *Staging, settings GitHubSettings) *Publisher {
	return &Publisher{
		repo:    repo,
		staging: staging,
		branch:  settings.Branch,
		base:    settings.BaseBranch,
		Logf:    log.Printf,
	}
}

// Publish commits every staged file to the backup branch, then makes sure a
// pull request into the base branch is open. Only branch setup and reading
// the staging area are fatal; file and pull request failures are recorded.
func (p *Publisher) Publish(ctx context.Context, message string) (*PublishResult, error) {
	if err := p.ensureBranch(ctx); err != nil {
		return nil, err
	}

	files, err := p.staging.Files()
	if err != nil {
		return nil, err
	}

	result := &PublishResult{Failed: map[string]error{}}
	if len(files) == 0 {
		p.Logf("→ Nothing staged in %s", p.staging.Root())
		return result, nil
	}

	p.Logf("→ Uploading %d files to %s", len(files), p.branch)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p.putFile(ctx, file, message, result)
	}

	p.ensurePullRequest(ctx, message, result)
	return result, nil
}

func (p *Publisher) ensureBranch(ctx context.Context) error {
	_, err := p.repo.BranchSHA(ctx, p.branch)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return &PublishError{Op: "branch", Path: p.branch, Err: err}
	}

	baseSHA, err := p.repo.BranchSHA(ctx, p.base)
	if err != nil {
		return &PublishError{Op: "branch", Path: p.base, Err: err}
	}
	if err := p.repo.CreateBranch(ctx, p.branch, baseSHA); err != nil {
		return &PublishError{Op: "branch", Path: p.branch, Err: err}
	}
	p.Logf("✓ Created branch %s from %s", p.branch, p.base)
	return nil
}

// putFile updates the file when it exists on the branch; any failure on that
// path falls through to a create
func (p *Publisher) putFile(ctx context.Context, file StagedFile, message string, result *PublishResult) {
	sha, err := p.repo.FileSHA(ctx, file.Path, p.branch)
	if err == nil {
		err = p.repo.UpdateFile(ctx, file.Path, p.branch, message, file.Content, sha)
		if err == nil {
			result.Updated = append(result.Updated, file.Path)
			p.Logf("✓ UPDATE: %s", file.Path)
			return
		}
		debugLog("update of %s failed, creating instead: %v", file.Path, err)
	} else if !errors.Is(err, errNotFound) {
		debugLog("lookup of %s failed, creating instead: %v", file.Path, err)
	}

	if err := p.repo.CreateFile(ctx, file.Path, p.branch, message, file.Content); err != nil {
		result.Failed[file.Path] = &PublishError{Op: "create", Path: file.Path, Err: err}
		p.Logf("✗ Failed to upload %s: %v", file.Path, err)
		return
	}
	result.Created = append(result.Created, file.Path)
	p.Logf("✓ CREATE: %s", file.Path)
}

func (p *Publisher) ensurePullRequest(ctx context.Context, message string, result *PublishResult) {
	url, err := p.repo.OpenPullRequest(ctx, p.branch, p.base)
	switch {
	case err == nil:
		result.PullRequestURL = url
		result.PullRequestExisted = true
		p.Logf("→ Pull request already open: %s", url)
		return
	case !errors.Is(err, errNotFound):
		p.Logf("✗ Skipping pull request: %v", err)
		return
	}

	url, err = p.repo.CreatePullRequest(ctx, "[Auto] "+message, pullRequestBody, p.branch, p.base)
	if err != nil {
		p.Logf("✗ Skipping pull request: %v", err)
		return
	}
	result.PullRequestURL = url
	p.Logf("✓ Opened pull request %s", url)
}
