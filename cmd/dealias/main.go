// Command dealias corrects velocity folding in a time series of cloud radar
// Doppler spectra and writes the dealiased moments as JSON.
//
//	dealias -input series.json -output out/result.json [-config dealias.yaml] [-db results.db]
//	dealias migrate <up|down|status|version N|force N> -db results.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/cloudradar/internal/config"
	"github.com/banshee-data/cloudradar/internal/db"
	"github.com/banshee-data/cloudradar/internal/dealias"
	"github.com/banshee-data/cloudradar/internal/fsutil"
	"github.com/banshee-data/cloudradar/internal/metrics"
	"github.com/banshee-data/cloudradar/internal/monitoring"
	"github.com/banshee-data/cloudradar/internal/series"
	"github.com/banshee-data/cloudradar/internal/timeutil"
	"github.com/banshee-data/cloudradar/internal/version"
)

const pushJob = "cloudradar_dealias"

var clock timeutil.Clock = timeutil.RealClock{}

type options struct {
	input       string
	output      string
	configPath  string
	dbPath      string
	workers     int
	chain       bool
	pushgateway string
	spectra     bool
	quiet       bool
	showVersion bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("dealias", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "input", "", "Series JSON document to process")
	fs.StringVar(&opts.output, "output", "", "Result JSON path (stdout when empty)")
	fs.StringVar(&opts.configPath, "config", "", "Tuning file (.json, .yaml or .yml); built-in defaults when empty")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite results database; results are not stored when empty")
	fs.IntVar(&opts.workers, "workers", 0, "Profiles processed concurrently (0 = number of CPUs)")
	fs.BoolVar(&opts.chain, "chain", false, "Feed each profile's velocity to the next one as previous column")
	fs.StringVar(&opts.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")
	fs.BoolVar(&opts.spectra, "spectra", false, "Include corrected spectra and velocity axes in the output")
	fs.BoolVar(&opts.quiet, "quiet", false, "Mute diagnostic logging of the processing core")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadTuning reads the tuning file and applies the command line overrides.
func loadTuning(opts *options) (*config.DealiasTuning, error) {
	tuning := config.DefaultDealiasTuning()
	if opts.configPath != "" {
		var err error
		if tuning, err = config.LoadDealiasTuning(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.set["workers"] {
		w := opts.workers
		tuning.Workers = &w
	}
	if opts.set["chain"] {
		c := opts.chain
		tuning.ChainPrevious = &c
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return tuning, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "migrate" {
		mfs := flag.NewFlagSet("dealias migrate", flag.ContinueOnError)
		mfs.SetOutput(stderr)
		dbPath := mfs.String("db", "cloudradar.db", "SQLite results database")
		if err := mfs.Parse(args[1:]); err != nil {
			return err
		}
		return db.RunMigrateCommand(mfs.Args(), *dbPath, stdout)
	}

	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "dealias %s\n", version.String())
		return nil
	}
	if opts.input == "" {
		return fmt.Errorf("-input is required")
	}
	if opts.quiet {
		monitoring.SetLogger(nil)
	}

	tuning, err := loadTuning(opts)
	if err != nil {
		return err
	}
	processor, err := dealias.NewProcessor(tuning.ToDealiasConfig())
	if err != nil {
		return err
	}

	fsys := fsutil.OSFileSystem{}
	doc, err := series.Load(fsys, opts.input)
	if err != nil {
		return err
	}
	profiles, err := doc.Profiles()
	if err != nil {
		return err
	}

	start := clock.Now()
	var store *db.DB
	rec := &db.Run{Version: version.Version, Input: opts.input, StartedAtNs: start.UnixNano()}
	if opts.dbPath != "" {
		if store, err = db.NewDB(opts.dbPath); err != nil {
			return err
		}
		defer store.Close()
		if rec.ConfigJSON, err = json.Marshal(tuning); err != nil {
			return fmt.Errorf("failed to encode tuning: %w", err)
		}
		if err := store.CreateRun(rec); err != nil {
			return err
		}
	} else {
		rec.RunID = uuid.New().String()
	}

	log.Printf("run %s: processing %d profiles from %s", rec.RunID, len(profiles), opts.input)
	results, err := processor.ProcessSeries(profiles, tuning.SeriesOptions())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	for i, res := range results {
		m.ObserveResult(res)
		if store != nil {
			if err := store.RecordResult(ctx, rec.RunID, i, res); err != nil {
				return err
			}
		}
	}

	out := series.NewOutput(rec.RunID, version.Version, results, opts.spectra)
	if opts.output != "" {
		if err := series.SaveOutput(fsys, opts.output, out); err != nil {
			return err
		}
	} else if err := series.EncodeOutput(stdout, out); err != nil {
		return err
	}

	finished := clock.Now()
	m.ObserveRun(finished.Sub(start), finished)
	if store != nil {
		if err := store.FinishRun(rec.RunID, len(results), finished); err != nil {
			return err
		}
	}
	log.Printf("run %s: %d profiles in %v", rec.RunID, len(results), finished.Sub(start).Round(time.Millisecond))

	if opts.pushgateway != "" {
		grouping := map[string]string{"run_id": rec.RunID, "version": version.Version}
		if err := metrics.Push(opts.pushgateway, pushJob, reg, grouping); err != nil {
			// Results are already written; a missing gateway only loses metrics.
			log.Printf("warning: %v", err)
		}
	}
	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("dealias: %v", err)
	}
}
