package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jengzang/gpx-tracks-etl/internal/config"
	"github.com/jengzang/gpx-tracks-etl/internal/logging"
)

const usage = `usage:
  gpxetl [-config file] ingest [-format json|yaml|text] [-segments reset|continuous] <file-or-dir>
  gpxetl [-config file] serve`

func main() {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Printf("[gpxetl] %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gpxetl", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file; environment variables override it")
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "ingest":
		return runIngest(ctx, cfg, rest[1:], stdout)
	case "serve":
		return runServe(ctx, cfg)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}
