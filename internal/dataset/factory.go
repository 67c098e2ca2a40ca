package dataset

import (
	"fmt"

	"ForexDash/internal/domain/repository"
	apphttp "ForexDash/pkg/http"
)

// Sources names the loaders New can build.
const (
	SourceCSV        = "csv"
	SourceParquet    = "parquet"
	SourceGitHub     = "github"
	SourceClickHouse = "clickhouse"
)

// Options carries what each source needs. Only the fields for the chosen source are read.
type Options struct {
	Source     string
	Dir        string
	HTTPClient *apphttp.Client
	ClickHouse repository.DatasetLoader
}

// New returns the loader for opts.Source.
func New(opts Options) (repository.DatasetLoader, error) {
	switch opts.Source {
	case "", SourceCSV:
		return NewCSVLoader(opts.Dir), nil
	case SourceParquet:
		return NewParquetLoader(opts.Dir), nil
	case SourceGitHub:
		if opts.HTTPClient == nil {
			return nil, fmt.Errorf("github source needs an http client")
		}
		return NewGitHubLoader(opts.HTTPClient), nil
	case SourceClickHouse:
		if opts.ClickHouse == nil {
			return nil, fmt.Errorf("clickhouse source needs a store")
		}
		return opts.ClickHouse, nil
	default:
		return nil, fmt.Errorf("unknown dataset source %q", opts.Source)
	}
}
