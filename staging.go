package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const postsDir = "_posts"

// Staging is the local directory mirroring the paths files get in the remote repository
type Staging struct {
	root string
}

// StagedFile is one file found in the staging area
type StagedFile struct {
	Path    string // slash-separated, relative to the staging root
	Content []byte
}

// NewStaging creates a staging area rooted at root
func NewStaging(root string) *Staging {
	return &Staging{root: root}
}

// Root returns the staging directory
func (s *Staging) Root() string {
	return s.root
}

// Clear removes everything staged by a previous batch
func (s *Staging) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return &IOError{Path: s.root, Err: err}
	}
	return nil
}

// Write stores the artifact under _posts/, replacing any previous version
func (s *Staging) Write(artifact MarkdownArtifact) (string, error) {
	if artifact.Filename == "" || strings.ContainsAny(artifact.Filename, `/\`) {
		return "", &IOError{Path: artifact.Filename, Err: fmt.Errorf("invalid filename")}
	}
	dir := filepath.Join(s.root, postsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &IOError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, artifact.Filename)
	if err := os.WriteFile(path, []byte(artifact.Body), 0644); err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	return path, nil
}

// Files returns every staged file except dot files, sorted by path
func (s *Staging) Files() ([]StagedFile, error) {
	var files []StagedFile
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, StagedFile{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Path: s.root, Err: err}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
