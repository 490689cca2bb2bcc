package trace

import (
	"context"
	"fmt"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
)

// Recording gives typed access to the tables written by DBTracer.
type Recording struct {
	reader datarecording.DataReader
}

// NewRecording wraps a reader and maps the tracer tables.
func NewRecording(reader datarecording.DataReader) *Recording {
	reader.MapTable(AccessTable, AccessEntry{})
	reader.MapTable(RunTable, RunEntry{})

	return &Recording{reader: reader}
}

// OpenRecording opens a recording file for reading.
func OpenRecording(path string) (*Recording, error) {
	reader, err := datarecording.NewReader(path)
	if err != nil {
		return nil, err
	}

	return NewRecording(reader), nil
}

// Runs returns every recorded run in recording order.
func (r *Recording) Runs(ctx context.Context) ([]RunEntry, error) {
	rows, _, err := r.reader.Query(ctx, RunTable, datarecording.QueryParams{
		OrderBy: "rowid ASC",
	})
	if err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}

	runs := make([]RunEntry, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, *row.(*RunEntry))
	}

	return runs, nil
}

// Accesses returns a page of the accesses of a run, ordered by sequence.
func (r *Recording) Accesses(
	ctx context.Context,
	runID string,
	offset, limit int,
) ([]AccessEntry, int, error) {
	rows, total, err := r.reader.Query(ctx, AccessTable,
		datarecording.QueryParams{
			Where:   "RunID = ?",
			Args:    []any{runID},
			OrderBy: "Seq ASC",
			Offset:  offset,
			Limit:   limit,
		})
	if err != nil {
		return nil, 0, fmt.Errorf("reading accesses: %w", err)
	}

	accesses := make([]AccessEntry, 0, len(rows))
	for _, row := range rows {
		accesses = append(accesses, *row.(*AccessEntry))
	}

	return accesses, total, nil
}

// CountClassification counts the recorded accesses of a run with the given
// classification.
func (r *Recording) CountClassification(
	ctx context.Context,
	runID string,
	c cache.Classification,
) (int, error) {
	return r.reader.Count(ctx, AccessTable, datarecording.QueryParams{
		Where: "RunID = ? AND Classification = ?",
		Args:  []any{runID, c.String()},
	})
}

// Close closes the underlying reader.
func (r *Recording) Close() error {
	return r.reader.Close()
}
