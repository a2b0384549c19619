package confstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConf(ctx, "passkey_cred_id", []byte{0x01, 0x02}))

	v, err := s.GetConf(ctx, "passkey_cred_id")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)
}

func TestGet_MissingReturnsNilNil(t *testing.T) {
	s := openStore(t)

	v, err := s.GetConf(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPut_Upserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConf(ctx, "k", []byte("old")))
	require.NoError(t, s.PutConf(ctx, "k", []byte("new")))

	v, err := s.GetConf(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestPut_NilValueStoredAsEmpty(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConf(ctx, "k", nil))
	v, err := s.GetConf(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestPutConfMany_WritesAllAndLists(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConfMany(ctx, map[string][]byte{
		"pin_hash":   []byte("h"),
		"pin_salt":   []byte("s"),
		"pin_scheme": []byte("pbkdf2-sha256"),
	}))

	m, err := s.ListConf(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.Equal(t, []byte("pbkdf2-sha256"), m["pin_scheme"])
}

func TestDelete_Idempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConf(ctx, "x", []byte{1}))
	require.NoError(t, s.DeleteConf(ctx, "x"))
	require.NoError(t, s.DeleteConf(ctx, "x"))

	v, err := s.GetConf(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutConf(ctx, "a", []byte{1}))
	require.NoError(t, s.PutConf(ctx, "b", []byte{2}))
	require.NoError(t, s.Clear(ctx))

	m, err := s.ListConf(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestOpen_FileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "health.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutConf(ctx, "last_day", []byte("2026-10-14")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetConf(ctx, "last_day")
	require.NoError(t, err)
	assert.Equal(t, []byte("2026-10-14"), v)
}

func TestErrorsWrappedAfterClose(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, RunMigrations(context.Background(), db))
	s := New(db)
	require.NoError(t, db.Close())

	ctx := context.Background()

	_, err = s.GetConf(ctx, "k")
	require.ErrorContains(t, err, "failed to get conf[k]")

	err = s.PutConf(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "failed to set conf[k]")

	err = s.DeleteConf(ctx, "k")
	require.ErrorContains(t, err, "failed to delete conf[k]")

	err = s.Clear(ctx)
	require.ErrorContains(t, err, "failed to clear conf")

	_, err = s.ListConf(ctx)
	require.ErrorContains(t, err, "failed to list conf")
}
