package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	_ "net/http/pprof"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/segmentio/parquet-go"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"

	"fpetkovski/stream-aggregate/aggregate"
	"fpetkovski/stream-aggregate/source"
)

type Options struct {
	// Input files to aggregate. All inputs are folded into one result.
	Inputs []string
	// Format of the input files: csv, jsonl or parquet.
	Format string
	// Name of the key column or field.
	KeyColumn string
	// Name of the value column or field.
	ValueColumn string
	// Number of records read and folded at a time.
	BatchSize int
	// Sum strategy: kahan or decimal.
	Sum string
	// Number of batches to read ahead of the fold.
	Prefetch int
	// Postgres connection string for SQL input.
	DSN string
	// Query returning key and value columns, aggregated alongside the files.
	Query string
	// Expose pprof and metrics on localhost:8080.
	Debug bool
}

func main() {
	app := kingpin.New("aggregate", "Sum a value column per key over batched record streams.")
	opts := Options{}
	if err := (&opts).BindFlags(app); err != nil {
		log.Fatal(err)
	}

	if opts.Debug {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Println(http.ListenAndServe("localhost:8080", nil))
		}()
	}

	newSum, err := sumStrategy(opts.Sum)
	if err != nil {
		log.Fatal(err)
	}
	metrics := aggregate.NewMetrics(prometheus.DefaultRegisterer)

	numSources := len(opts.Inputs)
	if opts.Query != "" {
		numSources++
	}
	if numSources == 0 {
		log.Fatal("no inputs given")
	}
	bar := progressbar.Default(int64(numSources))

	aggregators := make([]*aggregate.Aggregator[string], numSources)
	var group errgroup.Group
	for i, input := range opts.Inputs {
		i, input := i, input
		group.Go(func() error {
			agg, err := aggregate.New[string](opts.BatchSize, aggregate.WithSum[string](newSum), aggregate.WithMetrics[string](metrics))
			if err != nil {
				return err
			}
			if err := aggregateFile(input, &opts, agg); err != nil {
				return err
			}
			aggregators[i] = agg
			return bar.Add(1)
		})
	}
	if opts.Query != "" {
		group.Go(func() error {
			agg, err := aggregate.New[string](opts.BatchSize, aggregate.WithSum[string](newSum), aggregate.WithMetrics[string](metrics))
			if err != nil {
				return err
			}
			if err := aggregateQuery(&opts, agg); err != nil {
				return err
			}
			aggregators[numSources-1] = agg
			return bar.Add(1)
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatal(err)
	}

	totals, err := aggregate.New[string](opts.BatchSize, aggregate.WithSum[string](newSum))
	if err != nil {
		log.Fatal(err)
	}
	for _, agg := range aggregators {
		totals.Merge(agg)
	}
	printTotals(totals.Finalize())
}

func aggregateFile(input string, opts *Options, agg *aggregate.Aggregator[string]) error {
	file, err := os.Open(input)
	if err != nil {
		return err
	}
	defer file.Close()

	src, err := openSource(file, input, opts)
	if err != nil {
		return err
	}

	concurrent := aggregate.NewConcurrent(src, opts.Prefetch)
	defer concurrent.Close()

	recordErrs, err := aggregate.Run(context.Background(), concurrent, agg)
	for _, recErr := range recordErrs {
		log.Println("skipped malformed record in", input, "-", recErr)
	}
	return err
}

func openSource(file *os.File, input string, opts *Options) (aggregate.Source[string], error) {
	format := opts.Format
	if format == "" {
		format = detectFormat(input)
	}
	switch format {
	case "csv":
		return source.NewCSV(file, opts.KeyColumn, opts.ValueColumn, opts.BatchSize)
	case "jsonl":
		return source.NewJSONL(file, opts.KeyColumn, opts.ValueColumn, opts.BatchSize), nil
	case "parquet":
		stat, err := file.Stat()
		if err != nil {
			return nil, err
		}
		pqFile, err := parquet.OpenFile(file, stat.Size())
		if err != nil {
			return nil, err
		}
		return source.NewParquet(pqFile, opts.KeyColumn, opts.ValueColumn, opts.BatchSize)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func aggregateQuery(opts *Options, agg *aggregate.Aggregator[string]) error {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(opts.Query)
	if err != nil {
		return err
	}
	src, err := source.NewSQL(rows, opts.BatchSize)
	if err != nil {
		return err
	}
	defer src.Close()

	recordErrs, err := aggregate.Run(context.Background(), src, agg)
	for _, recErr := range recordErrs {
		log.Println("skipped malformed record in query result -", recErr)
	}
	return err
}

func detectFormat(input string) string {
	switch filepath.Ext(input) {
	case ".csv":
		return "csv"
	case ".jsonl", ".ndjson":
		return "jsonl"
	case ".parquet":
		return "parquet"
	default:
		return ""
	}
}

func sumStrategy(name string) (aggregate.NewSumFunc, error) {
	switch name {
	case "kahan":
		return aggregate.NewKahanSum, nil
	case "decimal":
		return aggregate.NewDecimalSum, nil
	default:
		return nil, fmt.Errorf("unknown sum strategy %q", name)
	}
}

func printTotals(totals map[string]float64) {
	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s\t%g\n", key, totals[key])
	}
}

func (o *Options) BindFlags(app *kingpin.Application) error {
	app.Flag("input", "Input file to aggregate. Repeat for multiple files.").
		StringsVar(&o.Inputs)
	app.Flag("format", "Input format: csv, jsonl or parquet. Detected from the file extension when empty.").
		Default("").EnumVar(&o.Format, "", "csv", "jsonl", "parquet")
	app.Flag("key-column", "Name of the key column.").
		Default("key").StringVar(&o.KeyColumn)
	app.Flag("value-column", "Name of the value column.").
		Default("value").StringVar(&o.ValueColumn)
	app.Flag("batch-size", "Number of records read and folded at a time.").
		Default("10000").IntVar(&o.BatchSize)
	app.Flag("sum", "Sum strategy: kahan or decimal.").
		Default("kahan").EnumVar(&o.Sum, "kahan", "decimal")
	app.Flag("prefetch", "Number of batches to read ahead of the fold.").
		Default("1").IntVar(&o.Prefetch)
	app.Flag("dsn", "Postgres connection string for SQL input.").
		Default("").StringVar(&o.DSN)
	app.Flag("query", "Query returning key and value columns.").
		Default("").StringVar(&o.Query)
	app.Flag("debug", "Expose pprof and metrics on localhost:8080.").BoolVar(&o.Debug)

	_, err := app.Parse(os.Args[1:])
	return err
}
