package repository_test

import (
	"path/filepath"
	"testing"

	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSQLiteLinkRepository(t *testing.T) {
	testLinkRepository(t, func(t *testing.T) repository.LinkRepository {
		db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "links.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		return repository.NewSQLiteLinkRepository(db)
	})
}

func TestSQLiteLinkRepository_InMemory(t *testing.T) {
	testLinkRepository(t, func(t *testing.T) repository.LinkRepository {
		db, err := repository.NewSQLiteDB(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		return repository.NewSQLiteLinkRepository(db)
	})
}
