package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "nested", "history.db"))
	assert.NilError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRecordAndMigrated(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	ok := PostResult{
		Post:     PostSummary{Title: "A", URL: "https://b.tistory.com/1", Date: "2024-01-01"},
		Status:   StatusSuccess,
		Filename: "2024-01-01-a.md",
	}
	failed := PostResult{
		Post:   PostSummary{Title: "B", URL: "https://b.tistory.com/2", Date: "2024-01-02"},
		Status: StatusError,
		Error:  errors.New("no content region"),
	}
	assert.NilError(t, l.Record(ctx, "run-1", ok))
	assert.NilError(t, l.Record(ctx, "run-1", failed))

	migrated, err := l.Migrated(ctx, ok.Post.URL)
	assert.NilError(t, err)
	assert.Assert(t, migrated)

	migrated, err = l.Migrated(ctx, failed.Post.URL)
	assert.NilError(t, err)
	assert.Assert(t, !migrated, "failed posts do not count as migrated")

	migrated, err = l.Migrated(ctx, "https://b.tistory.com/unknown")
	assert.NilError(t, err)
	assert.Assert(t, !migrated)
}

func TestLedgerRecent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		assert.NilError(t, l.Record(ctx, "run-1", PostResult{
			Post:   PostSummary{Title: title, URL: "https://b.tistory.com/" + title, Date: "2024-01-01"},
			Status: StatusSuccess,
		}))
	}

	entries, err := l.Recent(ctx, 2)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(entries, 2))
	assert.Equal(t, entries[0].Title, "third")
	assert.Equal(t, entries[1].Title, "second")
	assert.Equal(t, entries[0].Status, StatusSuccess)
	assert.Assert(t, !entries[0].RecordedAt.IsZero())
}

func TestLedgerReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	l, err := OpenLedger(path)
	assert.NilError(t, err)
	assert.NilError(t, l.Record(ctx, "run-1", PostResult{
		Post:   PostSummary{Title: "A", URL: "u", Date: "2024-01-01"},
		Status: StatusSuccess,
	}))
	assert.NilError(t, l.Close())

	l, err = OpenLedger(path)
	assert.NilError(t, err)
	defer l.Close()
	migrated, err := l.Migrated(ctx, "u")
	assert.NilError(t, err)
	assert.Assert(t, migrated)
}
