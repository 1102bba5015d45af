package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"os"
	"path/filepath"
	"strconv"
)

const (
	StatisticsFileName   = "trace_analysis_stats.json"
	E2EDurationsFileName = "real_e2e_execution_time.csv"
	durationHeader       = "duration_ms"
)

var ErrNilResult = errors.New("analysis result is nil")

// WriteResult writes the statistics document and the flat end-to-end duration series into
// outputDir, creating it when missing.
func WriteResult(outputDir string, result *model.AnalysisResult) error {
	if result == nil {
		return ErrNilResult
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if err := writeStatistics(filepath.Join(outputDir, StatisticsFileName), result); err != nil {
		return err
	}
	return writeDurations(filepath.Join(outputDir, E2EDurationsFileName), result.E2EDurations)
}

func writeStatistics(path string, result *model.AnalysisResult) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeDurations(path string, durations []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{durationHeader}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, duration := range durations {
		if err := writer.Write([]string{strconv.FormatFloat(duration, 'f', -1, 64)}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return file.Close()
}

// DirectoryWriter writes every result into the same directory, replacing the previous files.
type DirectoryWriter struct {
	Dir string
}

func (dw DirectoryWriter) Write(result *model.AnalysisResult) error {
	return WriteResult(dw.Dir, result)
}
