package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/gpx-tracks-etl/internal/database"
	"github.com/jengzang/gpx-tracks-etl/internal/gpx"
	"github.com/jengzang/gpx-tracks-etl/internal/kinematics"
	"github.com/jengzang/gpx-tracks-etl/internal/models"
	"github.com/jengzang/gpx-tracks-etl/internal/repository"
)

const doc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>east</name><trkseg>
    <trkpt lat="0" lon="0"><time>2024-05-01T06:00:00Z</time></trkpt>
    <trkpt lat="0" lon="1"><time>2024-05-01T07:00:00Z</time></trkpt>
  </trkseg></trk>
  <trk><name>north</name><trkseg>
    <trkpt lat="0" lon="0"><time>2024-05-01T08:00:00Z</time></trkpt>
    <trkpt lat="0.01" lon="0"><time>2024-05-01T08:01:00Z</time></trkpt>
    <trkpt lat="0.02" lon="0"><time>2024-05-01T08:02:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

const backwardsDoc = `<gpx version="1.1" creator="test">
  <trk><name>broken</name><trkseg>
    <trkpt lat="0" lon="0"><time>2024-05-01T06:00:00Z</time></trkpt>
    <trkpt lat="0" lon="1"><time>2024-05-01T05:00:00Z</time></trkpt>
  </trkseg></trk>
  <trk><name>fine</name><trkseg>
    <trkpt lat="0" lon="0"><time>2024-05-01T08:00:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

type memorySink struct {
	schemaCalls int
	writes      [][]models.EnrichedPoint
	err         error
}

func (s *memorySink) EnsureSchema(context.Context) error {
	s.schemaCalls++
	return nil
}

func (s *memorySink) Write(_ context.Context, records []models.EnrichedPoint) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.writes = append(s.writes, records)
	return len(records), nil
}

type recordingNotifier struct {
	reports []TrackReport
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r TrackReport) error {
	n.reports = append(n.reports, r)
	return n.err
}

func newPipeline(sink Sink, notifier Notifier) *Pipeline {
	return New(sink, kinematics.NewTransformer(kinematics.Options{}), notifier)
}

func TestProcessDocumentWritesEachTrack(t *testing.T) {
	sink := &memorySink{}
	notifier := &recordingNotifier{}
	p := newPipeline(sink, notifier)

	report, err := p.ProcessDocument(context.Background(), "rides.gpx", []byte(doc))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "rides.gpx", report.Source)
	assert.Equal(t, 5, report.Written)
	require.Len(t, report.Tracks, 2)
	assert.Equal(t, "east", report.Tracks[0].Name)
	assert.InDelta(t, 30.9, report.Tracks[0].Summary.MaxSpeed, 0.05)
	assert.Equal(t, 3, report.Tracks[1].Written)

	require.Len(t, sink.writes, 2)
	assert.Len(t, sink.writes[0], 2)
	assert.InDelta(t, 90.0, sink.writes[0][1].Course, 1e-6)
	assert.InDelta(t, 0.0, sink.writes[1][2].Course, 1e-6)

	require.Len(t, notifier.reports, 2)
	assert.Equal(t, report.RunID, notifier.reports[1].RunID)

	// schema creation happens once per pipeline
	_, err = p.ProcessDocument(context.Background(), "rides.gpx", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.schemaCalls)
}

func TestProcessDocumentRejectsBackwardsTrack(t *testing.T) {
	sink := &memorySink{}
	p := newPipeline(sink, nil)

	report, err := p.ProcessDocument(context.Background(), "broken.gpx", []byte(backwardsDoc))
	require.Error(t, err)

	var trackErr *TrackError
	require.True(t, errors.As(err, &trackErr))
	assert.Equal(t, "broken.gpx", trackErr.Source)
	assert.Equal(t, 0, trackErr.Track)
	assert.Equal(t, "broken", trackErr.Name)

	var nmErr *kinematics.NonMonotonicTimeError
	require.True(t, errors.As(err, &nmErr))
	assert.Equal(t, 1, nmErr.Index)
	assert.Contains(t, err.Error(), "broken.gpx#0")

	// the second track is still written
	require.Len(t, report.Tracks, 1)
	assert.Equal(t, "fine", report.Tracks[0].Name)
	require.Len(t, sink.writes, 1)
}

func TestProcessDocumentParseErrors(t *testing.T) {
	sink := &memorySink{}
	p := newPipeline(sink, nil)

	_, err := p.ProcessDocument(context.Background(), "bad.gpx", []byte("<gpx><trk>"))
	var perr *gpx.ParseError
	assert.True(t, errors.As(err, &perr))

	_, err = p.ProcessDocument(context.Background(), "empty.gpx", []byte(`<gpx version="1.1" creator="x"></gpx>`))
	assert.ErrorIs(t, err, gpx.ErrEmptyTrack)

	assert.Equal(t, 0, sink.schemaCalls)
	assert.Empty(t, sink.writes)
}

func TestProcessDocumentWriteError(t *testing.T) {
	writeErr := &repository.WriteError{Index: -1, Err: errors.New("disk full")}
	sink := &memorySink{err: writeErr}
	p := newPipeline(sink, nil)

	report, err := p.ProcessDocument(context.Background(), "rides.gpx", []byte(doc))
	var wErr *repository.WriteError
	require.True(t, errors.As(err, &wErr))
	assert.Equal(t, 0, report.Written)
	assert.Empty(t, report.Tracks)
}

func TestProcessDocumentNotifyFailureIsRecorded(t *testing.T) {
	sink := &memorySink{}
	notifier := &recordingNotifier{err: errors.New("redis down")}
	p := newPipeline(sink, notifier)

	report, err := p.ProcessDocument(context.Background(), "rides.gpx", []byte(doc))
	require.NoError(t, err)
	require.Len(t, report.Tracks, 2)
	assert.Equal(t, "redis down", report.Tracks[0].NotifyError)
	assert.Equal(t, 5, report.Written)
}

func TestProcessPathDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.gpx"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.GPX"), []byte(backwardsDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a track"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.gpx"), 0o755))

	sink := &memorySink{}
	p := newPipeline(sink, nil)

	reports, err := p.ProcessPath(context.Background(), dir)
	require.Error(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, filepath.Join(dir, "a.gpx"), reports[0].Source)
	assert.Equal(t, 5, reports[0].Written)
	assert.Equal(t, 1, reports[1].Written)

	var nmErr *kinematics.NonMonotonicTimeError
	assert.True(t, errors.As(err, &nmErr))
}

func TestProcessPathSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ride.gpx")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reports, err := newPipeline(&memorySink{}, nil).ProcessPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 5, reports[0].Written)

	_, err = newPipeline(&memorySink{}, nil).ProcessPath(context.Background(), filepath.Join(t.TempDir(), "missing.gpx"))
	assert.Error(t, err)
}

func TestProcessDocumentIntoSQLite(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "tracks.db")})
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewTrackRepository(db, "")
	p := newPipeline(repo, nil)
	ctx := context.Background()

	_, err = p.ProcessDocument(ctx, "rides.gpx", []byte(doc))
	require.NoError(t, err)
	_, err = p.ProcessDocument(ctx, "rides.gpx", []byte(doc))
	require.NoError(t, err)

	points, total, err := repo.GetTrackPoints(ctx, models.TrackPointFilter{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	var maxID int64
	for _, pt := range points {
		if pt.ID > maxID {
			maxID = pt.ID
		}
		assert.GreaterOrEqual(t, pt.Speed, 0.0)
		assert.Less(t, pt.Course, 360.0)
	}
	assert.Equal(t, int64(10), maxID)
}
