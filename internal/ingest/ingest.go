package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rockguard/internal/features"
	"rockguard/internal/model"
)

const (
	SourceKafka     = "kafka"
	SourceTCPStream = "tcp_stream"
	SourceFileTail  = "file_tail"
	SourceSimulator = "simulator"
)

func SendNonBlocking(ctx context.Context, out chan<- model.Sample, s model.Sample, logger *slog.Logger) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("reading channel full, dropping reading", "source", s.Source)
		}
		return false
	}
}

// DecodeLine parses one JSON reading. Blank lines yield ok=false with no error.
func DecodeLine(line []byte) (model.Reading, bool, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return model.Reading{}, false, nil
	}
	r, err := features.ParseJSON([]byte(trimmed))
	if err != nil {
		return model.Reading{}, false, err
	}
	return r, true, nil
}

func forward(ctx context.Context, line []byte, source string, out chan<- model.Sample, logger *slog.Logger) {
	r, ok, err := DecodeLine(line)
	if err != nil {
		if logger != nil {
			logger.Warn("reading decode error", "source", source, "err", err)
		}
		return
	}
	if !ok {
		return
	}
	SendNonBlocking(ctx, out, model.Sample{Reading: r, Source: source}, logger)
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
