package di

import (
	"fmt"

	"ForexDash/internal/dataset"
	"ForexDash/internal/usecase"
	"ForexDash/pkg/config"
)

// Import targets accepted by InitializeImporter.
const (
	ImportParquet    = "parquet"
	ImportClickHouse = "clickhouse"
)

// InitializeImporter builds an importer from the CSV files in simulator.data_dir into target.
// The returned func releases the clients it opened.
func InitializeImporter(cfg *config.Config, target string) (*usecase.DatasetImporter, func(), error) {
	l, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	src := dataset.NewCSVLoader(cfg.Simulator.DataDir)

	switch target {
	case ImportParquet:
		return usecase.NewDatasetImporter(src, dataset.NewParquetWriter(cfg.Simulator.DataDir), l), func() {}, nil
	case ImportClickHouse:
		ch, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		if ch == nil {
			return nil, nil, fmt.Errorf("clickhouse.enabled is false")
		}
		store, err := ProvideDatasetStore(ch, l)
		if err != nil {
			return nil, nil, err
		}
		return usecase.NewDatasetImporter(src, store, l), func() { _ = ch.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown import target %q", target)
	}
}
