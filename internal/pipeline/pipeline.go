// Package pipeline drives GPX documents through parse, transform and write.
//
// Tracks are handled one at a time: a track is transformed and written
// before the next one starts. A track that fails validation or writing is
// reported and skipped; the remaining tracks of the document still run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/gpx-tracks-etl/internal/gpx"
	"github.com/jengzang/gpx-tracks-etl/internal/kinematics"
	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// Sink persists enriched points
type Sink interface {
	EnsureSchema(ctx context.Context) error
	Write(ctx context.Context, records []models.EnrichedPoint) (int, error)
}

// Notifier announces a written track
type Notifier interface {
	Notify(ctx context.Context, report TrackReport) error
}

// Pipeline wires the parser, transformer and sink together
type Pipeline struct {
	sink        Sink
	transformer *kinematics.Transformer
	notifier    Notifier

	mu          sync.Mutex
	schemaReady bool
}

// New creates a pipeline. notifier may be nil.
func New(sink Sink, transformer *kinematics.Transformer, notifier Notifier) *Pipeline {
	return &Pipeline{
		sink:        sink,
		transformer: transformer,
		notifier:    notifier,
	}
}

// ensureSchema creates the target table once per pipeline
func (p *Pipeline) ensureSchema(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schemaReady {
		return nil
	}
	if err := p.sink.EnsureSchema(ctx); err != nil {
		return err
	}
	p.schemaReady = true
	return nil
}

// ProcessDocument parses data and writes every track it contains. The
// returned report lists the tracks that were written even when err != nil.
func (p *Pipeline) ProcessDocument(ctx context.Context, source string, data []byte) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}

	doc, err := gpx.ParseDocument(data)
	if err != nil {
		return report, fmt.Errorf("%s: %w", source, err)
	}

	if err := p.ensureSchema(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", source, err)
	}

	var errs []error
	for i, track := range doc.Tracks {
		if len(track.Points) == 0 {
			log.Printf("[Pipeline] run=%s %s#%d has no points, skipping", report.RunID, source, i)
			continue
		}

		tr, err := p.processTrack(ctx, report, i, track)
		if err != nil {
			log.Printf("[Pipeline] run=%s %v", report.RunID, err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		report.Tracks = append(report.Tracks, tr)
		report.Written += tr.Written
	}

	log.Printf("[Pipeline] run=%s source=%s tracks=%d written=%d failed=%d",
		report.RunID, source, len(report.Tracks), report.Written, len(errs))

	return report, errors.Join(errs...)
}

func (p *Pipeline) processTrack(ctx context.Context, report *Report, index int, track models.Track) (TrackReport, error) {
	wrap := func(err error) error {
		return &TrackError{Source: report.Source, Track: index, Name: track.Name, Err: err}
	}

	enriched, err := p.transformer.Transform(track.Points)
	if err != nil {
		return TrackReport{}, wrap(err)
	}

	written, err := p.sink.Write(ctx, enriched)
	if err != nil {
		return TrackReport{}, wrap(err)
	}

	tr := TrackReport{
		RunID:   report.RunID,
		Source:  report.Source,
		Track:   index,
		Name:    track.Name,
		Written: written,
		Summary: kinematics.Summarize(enriched),
	}

	if p.notifier != nil {
		// rows are committed; a retry here would duplicate them
		if err := p.notifier.Notify(ctx, tr); err != nil {
			log.Printf("[Pipeline] run=%s %s#%d notify failed: %v", report.RunID, report.Source, index, err)
			tr.NotifyError = err.Error()
		}
	}

	return tr, nil
}

// ProcessFile reads and processes a single GPX file
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.ProcessDocument(ctx, path, data)
}

// ProcessPath processes path if it is a file, or every *.gpx file directly
// inside it if it is a directory. Files are handled sequentially in name order.
func (p *Pipeline) ProcessPath(ctx context.Context, path string) ([]*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		report, err := p.ProcessFile(ctx, path)
		if report == nil {
			return nil, err
		}
		return []*Report{report}, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	var reports []*Report
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ".gpx") {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report, err := p.ProcessFile(ctx, filepath.Join(path, entry.Name()))
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(reports) == 0 && len(errs) == 0 {
		log.Printf("[Pipeline] no .gpx files found in %s", path)
	}

	return reports, errors.Join(errs...)
}
