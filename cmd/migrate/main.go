package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	shortDatePattern = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{2})-(.+\.md)$`)
	titleLinePattern = regexp.MustCompile(`(?m)^title:[ \t]*(.*)$`)
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <rename-dates|check-titles> <posts-directory>")
	}

	command := os.Args[1]
	postsDir := os.Args[2]

	switch command {
	case "rename-dates":
		if err := renameDates(postsDir); err != nil {
			log.Fatal(err)
		}
	case "check-titles":
		if err := checkTitles(postsDir, bufio.NewReader(os.Stdin)); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// renameDates renames YY-MM-DD-slug.md files written by older runs to the
// YYYY-MM-DD-slug.md form Jekyll requires
func renameDates(postsDir string) error {
	renamed := 0
	err := filepath.WalkDir(postsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if d.IsDir() {
			return nil
		}

		newName := longDateName(d.Name())
		if newName == "" {
			return nil
		}
		newPath := filepath.Join(filepath.Dir(path), newName)
		if _, err := os.Stat(newPath); err == nil {
			log.Printf("%s already exists, skipping %s", newName, d.Name())
			return nil
		}

		log.Printf("Renaming %s -> %s", d.Name(), newName)
		if err := os.Rename(path, newPath); err != nil {
			log.Printf("Error renaming %s: %v", path, err)
			return nil
		}
		renamed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}
	fmt.Printf("\nRenamed %d files\n", renamed)
	return nil
}

func longDateName(name string) string {
	m := shortDatePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("20%s-%s-%s-%s", m[1], m[2], m[3], m[4])
}

// checkTitles offers to quote titles that are not double-quoted strings and
// reports titles used by more than one post
func checkTitles(postsDir string, reader *bufio.Reader) error {
	titleToFiles := make(map[string][]string)
	fixed := 0

	if err := filepath.WalkDir(postsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}
		raw, ok := frontMatterTitle(string(content))
		if !ok {
			fmt.Printf("  NO TITLE: %s\n", filepath.Base(path))
			return nil
		}

		title := unquoteTitle(raw)
		titleToFiles[title] = append(titleToFiles[title], path)

		if isDoubleQuoted(raw) {
			return nil
		}
		fmt.Printf("\n%s\n  title: %s\n", filepath.Base(path), raw)
		if !confirm(reader, "  QUOTE as "+quoteTitle(title)+"?") {
			fmt.Println("  SKIP")
			return nil
		}
		updated := replaceTitle(string(content), quoteTitle(title))
		if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
			log.Printf("Error writing %s: %v", path, err)
			return nil
		}
		fixed++
		fmt.Println("  FIXED")
		return nil
	}); err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}

	titles := make([]string, 0, len(titleToFiles))
	for title, files := range titleToFiles {
		if len(files) > 1 {
			titles = append(titles, title)
		}
	}
	sort.Strings(titles)
	for _, title := range titles {
		fmt.Printf("\nDuplicate title %q:\n", title)
		for _, file := range titleToFiles[title] {
			fmt.Printf("  %s\n", filepath.Base(file))
		}
	}

	fmt.Printf("\nQuoted %d titles, found %d duplicate titles\n", fixed, len(titles))
	return nil
}

// frontMatterTitle returns the raw title value from the leading front matter
func frontMatterTitle(content string) (string, bool) {
	if !strings.HasPrefix(content, "---\n") {
		return "", false
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return "", false
	}
	m := titleLinePattern.FindStringSubmatch(content[4 : 4+end+1])
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func isDoubleQuoted(raw string) bool {
	return len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`)
}

func unquoteTitle(raw string) string {
	switch {
	case isDoubleQuoted(raw):
		inner := raw[1 : len(raw)-1]
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(inner)
	case len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'"):
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	default:
		return raw
	}
}

func quoteTitle(title string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(title) + `"`
}

// replaceTitle rewrites the first title line only
func replaceTitle(content, quoted string) string {
	done := false
	return titleLinePattern.ReplaceAllStringFunc(content, func(line string) string {
		if done {
			return line
		}
		done = true
		return "title: " + quoted
	})
}

func confirm(reader *bufio.Reader, prompt string) bool {
	for {
		fmt.Printf("%s [y/N]: ", prompt)
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("Error reading input: %v", err)
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Println("  Please enter y or n.")
		}
	}
}
