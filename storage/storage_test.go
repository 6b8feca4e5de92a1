package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfedit/model"
)

func sampleRecord(id string) Record {
	return Record{
		ID:     id,
		Source: []byte("%PDF-1.4\n%%EOF\n"),
		Snapshot: model.Snapshot{
			DocumentID:     id,
			CurrentVersion: 3,
			Sections: []model.ResumeSection{{
				ID: "sec-1", Type: model.SectionSkills, Title: "Skills", Visible: true,
				Items: []model.SectionItem{{ID: "i1", Text: "Go", TextRunIDs: []string{"p0-r1"}}},
			}},
			EditLog: []model.EditOperation{{ID: "e1", PageIndex: 0, TextRunID: "p0-r0", OriginalText: "a", NewText: "b", Version: 1}},
		},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// exerciseRepository runs the contract every backend must satisfy.
func exerciseRepository(t *testing.T, repo Repository, id string) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Load(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	rec := sampleRecord(id)
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Source, got.Source)
	assert.Equal(t, rec.Snapshot.CurrentVersion, got.Snapshot.CurrentVersion)
	assert.Equal(t, rec.Snapshot.Sections, got.Snapshot.Sections)
	assert.Equal(t, rec.Snapshot.EditLog[0].NewText, got.Snapshot.EditLog[0].NewText)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	rec.Snapshot.CurrentVersion = 4
	require.NoError(t, repo.Save(ctx, rec))
	got, err = repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Snapshot.CurrentVersion)

	require.NoError(t, repo.Delete(ctx, id))
	require.ErrorIs(t, repo.Delete(ctx, id), ErrNotFound)
	_, err = repo.Load(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, repo.Save(ctx, Record{}), ErrInvalidID)
}

func TestMemory(t *testing.T) {
	exerciseRepository(t, NewMemory(), "doc-memory")
}

func TestMemory_Isolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := sampleRecord("doc")
	require.NoError(t, m.Save(ctx, rec))

	rec.Source[0] = 'X'
	rec.Snapshot.Sections[0].Title = "changed"

	got, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, byte('%'), got.Source[0])
	assert.Equal(t, "Skills", got.Snapshot.Sections[0].Title)

	got.Snapshot.Sections[0].Items[0].Text = "mutated"
	again, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "Go", again.Snapshot.Sections[0].Items[0].Text)
}

func TestMemory_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewMemory().Save(ctx, sampleRecord("x")), context.Canceled)
}

func TestOpen(t *testing.T) {
	repo, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, repo)

	_, err = Open(context.Background(), Options{Backend: "sqlite"})
	require.ErrorIs(t, err, ErrUnknownStore)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("PDFEDIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PDFEDIT_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Ping(ctx))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, repo.pool))
	exerciseRepository(t, repo, "doc-postgres-"+time.Now().Format("150405.000000"))
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("PDFEDIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PDFEDIT_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := OpenRedis(ctx, RedisOptions{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer repo.Close()
	exerciseRepository(t, repo, "doc-redis-"+time.Now().Format("150405.000000"))
}
