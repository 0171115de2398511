package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v68/github"
)

// errNotFound reports a branch or file missing from the remote repository
var errNotFound = errors.New("not found")

// Repository is the slice of the hosting API the publisher needs
type Repository interface {
	BranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, branch, sha string) error
	FileSHA(ctx context.Context, path, branch string) (string, error)
	CreateFile(ctx context.Context, path, branch, message string, content []byte) error
	UpdateFile(ctx context.Context, path, branch, message string, content []byte, sha string) error
	OpenPullRequest(ctx context.Context, head, base string) (string, error)
	CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error)
}

// GitHubRepository implements Repository with the GitHub REST API
type GitHubRepository struct {
	client *github.Client
	owner  string
	name   string
}

// NewGitHubRepository creates a client for "owner/name" authenticated with token
func NewGitHubRepository(token, fullName string) (*GitHubRepository, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	return &GitHubRepository{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		name:   name,
	}, nil
}

// BranchSHA returns the head commit of branch, or errNotFound
func (r *GitHubRepository) BranchSHA(ctx context.Context, branch string) (string, error) {
	b, resp, err := r.client.Repositories.GetBranch(ctx, r.owner, r.name, branch, 1)
	if err != nil {
		return "", notFoundOr(resp, fmt.Errorf("getting branch %s: %w", branch, err))
	}
	return b.GetCommit().GetSHA(), nil
}

// CreateBranch creates refs/heads/<branch> at sha
func (r *GitHubRepository) CreateBranch(ctx context.Context, branch, sha string) error {
	ref := &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	}
	if _, _, err := r.client.Git.CreateRef(ctx, r.owner, r.name, ref); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}
	return nil
}

// FileSHA returns the blob SHA of path on branch, or errNotFound
func (r *GitHubRepository) FileSHA(ctx context.Context, path, branch string) (string, error) {
	file, _, resp, err := r.client.Repositories.GetContents(ctx, r.owner, r.name, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return "", notFoundOr(resp, fmt.Errorf("getting %s: %w", path, err))
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return file.GetSHA(), nil
}

// CreateFile commits a new file
func (r *GitHubRepository) CreateFile(ctx context.Context, path, branch, message string, content []byte) error {
	_, _, err := r.client.Repositories.CreateFile(ctx, r.owner, r.name, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	})
	return err
}

// UpdateFile commits a new version of an existing file
func (r *GitHubRepository) UpdateFile(ctx context.Context, path, branch, message string, content []byte, sha string) error {
	_, _, err := r.client.Repositories.UpdateFile(ctx, r.owner, r.name, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		SHA:     github.Ptr(sha),
		Branch:  github.Ptr(branch),
	})
	return err
}

// OpenPullRequest returns the URL of an open pull request head → base, or errNotFound
func (r *GitHubRepository) OpenPullRequest(ctx context.Context, head, base string) (string, error) {
	pulls, _, err := r.client.PullRequests.List(ctx, r.owner, r.name, &github.PullRequestListOptions{
		State: "open",
		Head:  r.owner + ":" + head,
		Base:  base,
	})
	if err != nil {
		return "", fmt.Errorf("listing pull requests: %w", err)
	}
	if len(pulls) == 0 {
		return "", errNotFound
	}
	return pulls[0].GetHTMLURL(), nil
}

// CreatePullRequest opens a pull request and returns its URL
func (r *GitHubRepository) CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error) {
	pr, _, err := r.client.PullRequests.Create(ctx, r.owner, r.name, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}

func notFoundOr(resp *github.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	return err
}
