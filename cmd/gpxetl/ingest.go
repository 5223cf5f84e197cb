package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/gpx-tracks-etl/internal/config"
	"github.com/jengzang/gpx-tracks-etl/internal/pipeline"
)

func runIngest(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	format := fs.String("format", "json", "report format: json, yaml or text")
	segments := fs.String("segments", "", "segment policy override: reset or continuous")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("ingest expects exactly one file or directory")
	}
	switch *format {
	case "json", "yaml", "text":
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.pipeline(cfg, *segments)
	if err != nil {
		return err
	}

	reports, ingestErr := p.ProcessPath(ctx, fs.Arg(0))
	if reports == nil {
		reports = []*pipeline.Report{}
	}
	if err := writeReports(stdout, *format, reports); err != nil {
		return errors.Join(ingestErr, err)
	}
	return ingestErr
}

func writeReports(w io.Writer, format string, reports []*pipeline.Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode reports: %w", err)
		}
		return enc.Close()
	case "text":
		return writeText(w, reports)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode reports: %w", err)
		}
		return nil
	}
}

func writeText(w io.Writer, reports []*pipeline.Report) error {
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "%s  run %s  %s rows\n", r.Source, r.RunID, humanize.Comma(int64(r.Written))); err != nil {
			return err
		}
		for _, t := range r.Tracks {
			name := t.Name
			if name == "" {
				name = "(unnamed)"
			}
			line := fmt.Sprintf("  #%d %s: %s points, %s in %s, avg %.1f m/s, max %.1f m/s",
				t.Track, name,
				humanize.Comma(int64(t.Summary.Points)),
				humanize.SIWithDigits(t.Summary.DistanceM, 2, "m"),
				t.Summary.Duration.Round(time.Second),
				t.Summary.AvgSpeed, t.Summary.MaxSpeed,
			)
			if t.NotifyError != "" {
				line += " (notify failed: " + t.NotifyError + ")"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
