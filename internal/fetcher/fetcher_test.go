package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("http://example.com/a.csv"))
	assert.False(t, IsRemote("./data/a.csv"))
	assert.False(t, IsRemote("/abs/a.csv"))
	assert.False(t, IsRemote("ftp://example.com/a.csv"))
}

func TestResolve_LocalPassThrough(t *testing.T) {
	r := NewResolver(newTestFetcher(), t.TempDir())
	got, err := r.Resolve(context.Background(), "./data/bus-stops.csv", ".csv")
	require.NoError(t, err)
	assert.Equal(t, "./data/bus-stops.csv", got)
}

func TestResolve_RemoteIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("Stop_Code_LBSL\n1\n"))
	}))
	defer srv.Close()

	r := NewResolver(newTestFetcher(), t.TempDir())
	first, err := r.Resolve(context.Background(), srv.URL+"/bus-stops.csv", ".csv")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), srv.URL+"/bus-stops.csv", ".csv")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "Stop_Code_LBSL\n1\n", string(data))
}

func TestResolve_RemoteFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(newTestFetcher(), dir)
	_, err := r.Resolve(context.Background(), srv.URL+"/missing.csv", ".csv")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_ZipPicksExtension(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"lsoa/centroids.shp": "shp",
		"lsoa/centroids.dbf": "dbf",
		"README.txt":         "hi",
	})

	r := NewResolver(newTestFetcher(), t.TempDir())
	got, err := r.Resolve(context.Background(), zipPath, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "centroids.shp", filepath.Base(got))

	_, err = r.Resolve(context.Background(), zipPath, ".csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .csv file")
}
