package device

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
)

const (
	// Default number of work items processed by a single kernel invocation.
	DefaultChunkSize = 1024
)

// A contiguous range [Start, End) of work items. Index identifies the chunk
// and is stable for a given item count and chunk size.
type Chunk struct {
	Index int
	Start int
	End   int
}

// A kernel processes all work items of a chunk.
type Kernel func(chunk Chunk) error

// A CPU compute grid. Work is split into fixed size chunks that are
// processed by a bounded pool of goroutines. Every Exec1D call is a barrier:
// it returns only after all dispatched chunks have completed.
type Grid struct {
	Name string

	// Max number of chunks processed concurrently.
	Workers int

	// Number of work items per chunk.
	ChunkSize int
}

// Create a new grid. Non-positive values select runtime.NumCPU() workers and
// DefaultChunkSize items per chunk.
func NewGrid(workers, chunkSize int) *Grid {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Grid{
		Name:      fmt.Sprintf("cpu grid (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Workers:   workers,
		ChunkSize: chunkSize,
	}
}

// Number of chunks needed to cover n work items.
func (g *Grid) NumChunks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + g.ChunkSize - 1) / g.ChunkSize
}

// Run kernel over n work items and wait for all chunks to complete. The
// first kernel error or a cancellation of ctx stops the dispatch of further
// chunks; the returned error is the kernel error or ctx.Err().
func (g *Grid) Exec1D(ctx context.Context, n int, kernel Kernel) error {
	numChunks := g.NumChunks(n)
	if numChunks == 0 {
		return ctx.Err()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.Workers)
	for index := 0; index < numChunks; index++ {
		if egCtx.Err() != nil {
			break
		}

		chunk := Chunk{
			Index: index,
			Start: index * g.ChunkSize,
			End:   min((index+1)*g.ChunkSize, n),
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return kernel(chunk)
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	// Report cancellations that happened after the last chunk was dispatched
	return ctx.Err()
}

// Implements Stringer.
func (g *Grid) String() string {
	return fmt.Sprintf("Name: %s\nSpecs: %d workers, %d items per chunk", g.Name, g.Workers, g.ChunkSize)
}

// Get a table describing the grid and the host it runs on.
func (g *Grid) Info() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Device", "Type", "Workers", "Chunk size", "Logical CPUs"})
	table.Append([]string{
		g.Name,
		"CPU",
		fmt.Sprintf("%d", g.Workers),
		fmt.Sprintf("%d", g.ChunkSize),
		fmt.Sprintf("%d", runtime.NumCPU()),
	})
	table.Render()

	return buf.String()
}
