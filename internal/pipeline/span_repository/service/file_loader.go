package service

import (
	"bufio"
	"context"
	"fmt"
	"go.uber.org/zap"
	"io"
	"os"
)

const maxRecordSize = 64 * 1024 * 1024

// LoadFile streams a line-delimited OTLP-JSON file into the repository.
func LoadFile(ctx context.Context, path string, repository SpanRepository, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file %s: %w", path, err)
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Error("Error encountered when closing trace file", zap.Error(err))
		}
	}(file)
	return LoadRecords(ctx, file, repository, logger)
}

func LoadRecords(ctx context.Context, reader io.Reader, repository SpanRepository, logger *zap.Logger) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxRecordSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := repository.IngestRecord(scanner.Bytes()); err != nil {
			logger.Warn("Skipping malformed trace record", zap.Int("line", line), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read trace records: %w", err)
	}
	return nil
}
