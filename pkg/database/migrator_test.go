package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestUp(t *testing.T) {
	t.Parallel()

	store := NewEmptyTestStore(t)
	ctx := context.Background()
	migrator := NewMigrator(store, Migrations(), zaptest.NewLogger(t))

	// a new database has nothing applied
	v, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	all, err := migrator.All()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	n, err := migrator.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, len(all), n)

	v, err = migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, all[len(all)-1].Version, v)

	// running again is a no-op
	n, err = migrator.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestUp_OrderAndPending(t *testing.T) {
	t.Parallel()

	store := NewEmptyTestStore(t)
	ctx := context.Background()

	source := fstest.MapFS{
		"0002_second.sql": {Data: []byte(`CREATE TABLE second (id TEXT NOT NULL PRIMARY KEY, first_id TEXT REFERENCES first (id));`)},
		"0001_first.sql":  {Data: []byte(`CREATE TABLE first (id TEXT NOT NULL PRIMARY KEY);`)},
		"README.md":       {Data: []byte(`ignored`)},
	}
	migrator := NewMigrator(store, source, zaptest.NewLogger(t))

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, []Migration{{1, "0001_first.sql"}, {2, "0002_second.sql"}}, pending)

	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	source["0003_third.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE third (id TEXT);`)}
	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, []Migration{{3, "0003_third.sql"}}, pending)
}

func TestUp_FailureStopsAndKeepsVersion(t *testing.T) {
	t.Parallel()

	store := NewEmptyTestStore(t)
	ctx := context.Background()

	source := fstest.MapFS{
		"0001_first.sql":  {Data: []byte(`CREATE TABLE first (id TEXT NOT NULL PRIMARY KEY);`)},
		"0002_broken.sql": {Data: []byte(`CREATE TABLE broken (;`)},
	}
	migrator := NewMigrator(store, source, zaptest.NewLogger(t))

	n, err := migrator.Up(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "0002_broken.sql")
	require.Equal(t, 1, n)

	v, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestScriptVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     int
		wantErr  bool
	}{
		{"single digit number", "0001_some_file_name.sql", 1, false},
		{"larger number", "0921_another_file.sql", 921, false},
		{"bad name", "not_numbered_correctly.sql", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scriptVersion(tt.filename)
			require.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
