package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLongDateName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"24-01-15-ctf-writeup.md", "2024-01-15-ctf-writeup.md"},
		{"2024-01-15-ctf-writeup.md", ""},
		{"24-01-15-notes.txt", ""},
		{"readme.md", ""},
	}
	for _, tt := range tests {
		if got := longDateName(tt.name); got != tt.want {
			t.Errorf("longDateName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRenameDates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"24-01-15-a.md", "2024-02-01-b.md", "23-12-31-c.md", "2023-12-31-c.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := renameDates(dir); err != nil {
		t.Fatalf("renameDates() error = %v", err)
	}

	for _, name := range []string{"2024-01-15-a.md", "2024-02-01-b.md", "2023-12-31-c.md", "23-12-31-c.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	data, _ := os.ReadFile(filepath.Join(dir, "2023-12-31-c.md"))
	if string(data) != "2023-12-31-c.md" {
		t.Errorf("existing file was overwritten: %q", data)
	}
}

func TestTitleQuoting(t *testing.T) {
	tests := []struct {
		raw    string
		title  string
		quoted bool
	}{
		{`"Already quoted"`, "Already quoted", true},
		{`"He said \"hi\""`, `He said "hi"`, true},
		{`'it''s single'`, "it's single", false},
		{`plain: colon`, "plain: colon", false},
	}
	for _, tt := range tests {
		if got := unquoteTitle(tt.raw); got != tt.title {
			t.Errorf("unquoteTitle(%q) = %q, want %q", tt.raw, got, tt.title)
		}
		if got := isDoubleQuoted(tt.raw); got != tt.quoted {
			t.Errorf("isDoubleQuoted(%q) = %v", tt.raw, got)
		}
		if got := unquoteTitle(quoteTitle(tt.title)); got != tt.title {
			t.Errorf("quoteTitle round trip of %q gave %q", tt.title, got)
		}
	}
}

func TestCheckTitlesQuotesOnConfirm(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"2024-01-01-a.md": "---\nlayout: post\ntitle: CTF: level 1\n---\n\ntitle: body line stays\n",
		"2024-01-02-b.md": "---\ntitle: \"CTF: level 1\"\n---\nbody\n",
		"2024-01-03-c.md": "---\ntitle: 'skip me'\n---\nbody\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// walk order is lexical: a is fixed, c is skipped
	reader := bufio.NewReader(strings.NewReader("y\nn\n"))
	if err := checkTitles(dir, reader); err != nil {
		t.Fatalf("checkTitles() error = %v", err)
	}

	a, _ := os.ReadFile(filepath.Join(dir, "2024-01-01-a.md"))
	if !strings.Contains(string(a), "title: \"CTF: level 1\"\n") {
		t.Errorf("title not quoted:\n%s", a)
	}
	if !strings.Contains(string(a), "title: body line stays") {
		t.Errorf("body line was rewritten:\n%s", a)
	}
	c, _ := os.ReadFile(filepath.Join(dir, "2024-01-03-c.md"))
	if string(c) != files["2024-01-03-c.md"] {
		t.Errorf("declined file changed:\n%s", c)
	}
}
