package importapp

import (
	"context"
	"math"

	"github.com/certhub/backend/internal/domain/participant"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
)

// DefaultChunkSize is the number of data rows processed between progress reports
const DefaultChunkSize = 5000

// minFieldsPerRow is the smallest row that is turned into a record
const minFieldsPerRow = 2

// ProgressFunc receives the completion percentage. Values never decrease and
// the last call reports 100.
type ProgressFunc func(percent int)

// ChunkState is carried from one chunk to the next. Processed counts data
// rows consumed so far, Total is the number of data rows in the document.
type ChunkState struct {
	Processed int
	Total     int
	Progress  int
	Records   []participant.Record
	Skipped   *csvimport.ErrorCollection
}

// NewChunkState creates the state for a document with total data rows
func NewChunkState(total, maxErrors int) ChunkState {
	return ChunkState{
		Total:   total,
		Records: make([]participant.Record, 0, total),
		Skipped: csvimport.NewErrorCollection(maxErrors),
	}
}

// Done reports whether every data row was consumed
func (s ChunkState) Done() bool {
	return s.Processed >= s.Total
}

// ChunkProcessor tokenizes and normalizes consecutive slices of data rows
type ChunkProcessor struct {
	tokenizer  csvimport.Tokenizer
	normalizer RowNormalizer
}

// NewChunkProcessor creates a processor for one document
func NewChunkProcessor(tokenizer csvimport.Tokenizer, normalizer RowNormalizer) ChunkProcessor {
	return ChunkProcessor{tokenizer: tokenizer, normalizer: normalizer}
}

// ProcessChunk consumes the rows that follow state.Processed and returns the
// advanced state together with the progress gained. Rows with fewer than two
// fields are skipped and recorded in state.Skipped.
func (p ChunkProcessor) ProcessChunk(state ChunkState, chunk []string) (ChunkState, int) {
	for i, line := range chunk {
		dataIndex := state.Processed + i
		// line 1 is the header
		rowNumber := dataIndex + 2

		fields := p.tokenizer.Split(line)
		if len(fields) < minFieldsPerRow {
			state.Skipped.AddMalformedRow(rowNumber, len(fields))
			continue
		}
		state.Records = append(state.Records, p.normalizer.Normalize(fields, rowNumber, dataIndex+1))
	}
	state.Processed += len(chunk)

	progress := percent(state.Processed, state.Total)
	delta := progress - state.Progress
	state.Progress = progress
	return state, delta
}

// RunChunks drives ProcessChunk sequentially over rows, reporting progress
// after each chunk. Cancellation is checked between chunks.
func RunChunks(ctx context.Context, p ChunkProcessor, rows []string, chunkSize, maxErrors int, progress ProgressFunc) (ChunkState, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	state := NewChunkState(len(rows), maxErrors)

	for !state.Done() {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		end := min(state.Processed+chunkSize, len(rows))
		state, _ = p.ProcessChunk(state, rows[state.Processed:end])
		if progress != nil {
			progress(state.Progress)
		}
	}
	return state, nil
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}
