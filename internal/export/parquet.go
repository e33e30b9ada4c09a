// Package export writes generated stage series to Parquet files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"StageSentinel/internal/model"
)

// ErrEmptySeries is returned when there is nothing to write.
var ErrEmptySeries = errors.New("series has no bars")

// StageRecord is the Parquet schema: one row per generated day.
type StageRecord struct {
	Symbol           string  `parquet:"symbol"`
	Date             string  `parquet:"date"`
	Timestamp        int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open             float64 `parquet:"open"`
	High             float64 `parquet:"high"`
	Low              float64 `parquet:"low"`
	Close            float64 `parquet:"close"`
	Volume           int64   `parquet:"volume"`
	MovingAverage    float64 `parquet:"ma_30w"`
	Stage            int32   `parquet:"stage"`
	SATAScore        float64 `parquet:"sata_score"`
	RelativeStrength float64 `parquet:"relative_strength"`
	Momentum         float64 `parquet:"momentum"`
}

// Bar converts the record back to a DailyBar.
func (r StageRecord) Bar() (model.DailyBar, error) {
	d, err := model.ParseDate(r.Date)
	if err != nil {
		return model.DailyBar{}, err
	}
	return model.DailyBar{Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}, nil
}

// ParquetExporter writes series under Dir.
type ParquetExporter struct {
	Dir string
}

// NewParquetExporter creates an exporter rooted at dir.
func NewParquetExporter(dir string) *ParquetExporter {
	return &ParquetExporter{Dir: dir}
}

// Path returns where a series for symbol over [start, end) is written:
//
//	<Dir>/<SYMBOL>/<start>_<end>.parquet
func (e *ParquetExporter) Path(symbol string, start, end model.Date) string {
	return filepath.Join(e.Dir, strings.ToUpper(symbol), fmt.Sprintf("%s_%s.parquet", start, end))
}

// Export writes series and returns the file path. An existing file is replaced.
func (e *ParquetExporter) Export(series *model.StageSeries) (string, error) {
	n := series.Len()
	if n == 0 {
		return "", fmt.Errorf("export %s: %w", series.Symbol, ErrEmptySeries)
	}

	records := make([]StageRecord, n)
	for i, b := range series.PriceData {
		records[i] = StageRecord{
			Symbol:           series.Symbol,
			Date:             b.Date.String(),
			Timestamp:        b.Date.UnixMilli(),
			Open:             b.Open,
			High:             b.High,
			Low:              b.Low,
			Close:            b.Close,
			Volume:           b.Volume,
			MovingAverage:    series.MovingAverage30W[i].Value,
			Stage:            int32(series.StageAnalysis.Stages[i].Stage),
			SATAScore:        series.StageAnalysis.Stages[i].SATAScore,
			RelativeStrength: series.StageAnalysis.RelativeStrength[i].Value,
			Momentum:         series.StageAnalysis.Momentum[i].Value,
		}
	}

	start := series.PriceData[0].Date
	end := series.PriceData[n-1].Date.AddDays(1)
	path := e.Path(series.Symbol, start, end)
	if err := writeParquetFile(path, records); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadBars reads every row of an exported file, in date order.
func ReadBars(path string) ([]StageRecord, error) {
	records, err := parquet.ReadFile[StageRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
