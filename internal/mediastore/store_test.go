package mediastore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/vortex/internal/pipeline"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db", "media.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestOpen_CreatesSchema(t *testing.T) {
	s, _ := openTestStore(t)

	for _, table := range []string{"media", "_migrations"} {
		var name string
		err := s.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	var mode string
	require.NoError(t, s.conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.db")

	s1, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	var n int
	require.NoError(t, s2.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRegisterAndGet(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()
	path := filepath.Join(dir, "export.mp4")
	writeFile(t, path, 1234)

	id, err := s.Register(ctx, path, "My export", "video/mp4")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, path, e.Path)
	assert.Equal(t, "My export", e.Name)
	assert.Equal(t, "video/mp4", e.MIME)
	assert.Equal(t, int64(1234), e.Size)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestRegister_SamePathKeepsID(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()
	path := filepath.Join(dir, "export.mp4")
	writeFile(t, path, 10)

	first, err := s.Register(ctx, path, "", "video/mp4")
	require.NoError(t, err)

	writeFile(t, path, 20)
	second, err := s.Register(ctx, path, "renamed", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	e, err := s.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "renamed", e.Name)
	assert.Equal(t, int64(20), e.Size)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegister_DefaultName(t *testing.T) {
	s, dir := openTestStore(t)
	path := filepath.Join(dir, "clip.mp4")
	writeFile(t, path, 1)

	id, err := s.Register(context.Background(), path, "", "video/mp4")
	require.NoError(t, err)
	e, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", e.Name)
}

func TestRegister_MissingFile(t *testing.T) {
	s, dir := openTestStore(t)
	_, err := s.Register(context.Background(), filepath.Join(dir, "missing.mp4"), "", "video/mp4")
	assert.Error(t, err)
}

func TestListAndRemove(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, 1)
		id, err := s.Register(ctx, path, name, "video/mp4")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.mp4", all[0].Name, "newest first")

	require.NoError(t, s.Remove(ctx, ids[1]))
	assert.Error(t, s.Remove(ctx, ids[1]))

	e, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Nil(t, e)

	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = os.Stat(filepath.Join(dir, "b.mp4"))
	assert.NoError(t, err, "Remove must not delete the file")
}

var _ pipeline.MediaStore = (*Store)(nil)
