package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"

	xlog "github.com/nanoqc/nanoqc/internal/log"
)

// WriteJSON writes the report atomically: the destination either holds the
// previous document or the complete new one, never a partial write.
func WriteJSON(ctx context.Context, path string, r *Report) error {
	logger := xlog.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	// CloseAtomicallyReplace: fsync + rename (durable + atomic)
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}

	logger.Info().
		Str("event", "report.json_written").
		Str(xlog.FieldPath, path).
		Msg("report written")
	return nil
}
