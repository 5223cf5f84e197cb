package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/gpx-tracks-etl/internal/database"
	"github.com/jengzang/gpx-tracks-etl/internal/pipeline"
	"github.com/jengzang/gpx-tracks-etl/internal/repository"
)

const ride = `<gpx version="1.1" creator="test">
  <trk><name>loop</name>
    <trkseg>
      <trkpt lat="0" lon="0"><time>2024-05-01T06:00:00Z</time></trkpt>
      <trkpt lat="0" lon="0.01"><time>2024-05-01T06:05:00Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="0" lon="0.02"><time>2024-05-01T06:10:00Z</time></trkpt>
      <trkpt lat="0" lon="0.03"><time>2024-05-01T06:15:00Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "db", "tracks.db"))
	t.Setenv("REDIS_ADDR", "")

	path := filepath.Join(dir, "loop.gpx")
	require.NoError(t, os.WriteFile(path, []byte(ride), 0o644))
	return path
}

func TestIngestJSON(t *testing.T) {
	path := setup(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"ingest", path}, &out))

	var reports []pipeline.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, 4, reports[0].Written)
	require.Len(t, reports[0].Tracks, 1)
	assert.Equal(t, "loop", reports[0].Tracks[0].Name)
}

func TestIngestSegmentPolicy(t *testing.T) {
	path := setup(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"ingest", "-format", "yaml", path}, &out))

	var reports []pipeline.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, 4, reports[0].Written)

	out.Reset()
	require.NoError(t, run(ctx, []string{"ingest", "-format", "yaml", "-segments", "continuous", path}, &out))

	db, err := database.Open(database.Config{Path: os.Getenv("DB_PATH")})
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewTrackRepository(db, "")

	// first point of the second segment: ids 3 (reset) and 7 (continuous)
	reset, err := repo.GetTrackPointByID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, reset)
	assert.Equal(t, 0.0, reset.Speed)

	continuous, err := repo.GetTrackPointByID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, continuous)
	assert.InDelta(t, 3.7, continuous.Speed, 0.1)
	assert.InDelta(t, 90.0, continuous.Course, 1e-6)
}

func TestIngestText(t *testing.T) {
	path := setup(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"ingest", "-format", "text", path}, &out))
	assert.Contains(t, out.String(), "#0 loop: 4 points")
	assert.Contains(t, out.String(), "4 rows")
}

func TestIngestWithNotifier(t *testing.T) {
	path := setup(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_CHANNEL", "rides")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"ingest", path}, &out))

	items, err := mr.List("rides:recent")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestIngestReportsFailures(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "tracks.db"))
	t.Setenv("REDIS_ADDR", "")
	bad := filepath.Join(dir, "bad.gpx")
	require.NoError(t, os.WriteFile(bad, []byte("<gpx><trk>"), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), []string{"ingest", bad}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "bad.gpx")
}

func TestRunUsageErrors(t *testing.T) {
	setup(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, run(ctx, nil, &out))
	assert.Error(t, run(ctx, []string{"export"}, &out))
	assert.Error(t, run(ctx, []string{"ingest"}, &out))
	assert.Error(t, run(ctx, []string{"ingest", "-format", "xml", "x.gpx"}, &out))
	assert.Error(t, run(ctx, []string{"ingest", "-segments", "sometimes", "x.gpx"}, &out))
	assert.Error(t, run(ctx, []string{"-config", "/does/not/exist.yml", "ingest", "x.gpx"}, &out))
}

func TestServeStopsOnCancel(t *testing.T) {
	setup(t)

	old := listenFn
	defer func() { listenFn = old }()
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	listenFn = func(*http.Server) error {
		close(started)
		<-release
		return http.ErrServerClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"serve"}, &bytes.Buffer{}) }()

	<-started
	cancel()
	assert.NoError(t, <-done)
}

func TestServeListenError(t *testing.T) {
	setup(t)

	old := listenFn
	defer func() { listenFn = old }()
	listenFn = func(*http.Server) error { return errors.New("address in use") }

	err := run(context.Background(), []string{"serve"}, &bytes.Buffer{})
	assert.EqualError(t, err, "address in use")
}
