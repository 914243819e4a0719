package renderer

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/achilleasa/wavetrace/tracer"
	"github.com/olekukonko/tablewriter"
)

type TracerStat struct {
	// The tracer id.
	Id string

	// The block height and the percentage of total frame area it represents.
	BlockH       uint32
	FramePercent float32

	// Time spent applying queued updates.
	UpdateTime time.Duration

	// Render time for assigned block and its breakdown per stage group.
	RenderTime time.Duration
	StageTimes map[string]time.Duration
}

type FrameStats struct {
	// Individual tracer stats.
	Tracers []TracerStat

	// Path counts for each bounce of the last iteration.
	Bounces []tracer.BounceStat

	// Paths dropped due to non-finite radiance.
	DiscardedPaths int

	// Number of accumulated iterations.
	Iterations uint32

	// Total render time for the last iteration.
	RenderTime time.Duration
}

func newFrameStats(tr tracer.Tracer, iterations uint32, renderTime time.Duration) FrameStats {
	blockStats := tr.Stats()
	return FrameStats{
		Tracers: []TracerStat{
			{
				Id:           tr.Id(),
				BlockH:       blockStats.BlockH,
				FramePercent: 100,
				UpdateTime:   blockStats.UpdateTime,
				RenderTime:   blockStats.RenderTime,
				StageTimes:   blockStats.StageTimes,
			},
		},
		Bounces:        blockStats.Bounces,
		DiscardedPaths: blockStats.DiscardedPaths,
		Iterations:     iterations,
		RenderTime:     renderTime,
	}
}

// Render frame statistics as a set of tables.
func (s FrameStats) String() string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Device", "Block height", "% of frame", "Update time", "Stages", "Render time"})
	for _, stat := range s.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			stat.UpdateTime.String(),
			fmtStageTimes(stat.StageTimes),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "", "", "TOTAL", s.RenderTime.String()})
	table.Render()

	table = tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeader([]string{"Bounce", "Active paths", "Hits", "Terminated"})
	for bounce, stat := range s.Bounces {
		table.Append([]string{
			fmt.Sprintf("%d", bounce),
			fmt.Sprintf("%d", stat.ActivePaths),
			fmt.Sprintf("%d", stat.Hits),
			fmt.Sprintf("%d", stat.Terminated),
		})
	}
	table.SetFooter([]string{"", "", "Discarded", fmt.Sprintf("%d", s.DiscardedPaths)})
	table.Render()

	fmt.Fprintf(&buf, "iterations: %d\n", s.Iterations)
	return buf.String()
}

func fmtStageTimes(stageTimes map[string]time.Duration) string {
	names := make([]string, 0, len(stageTimes))
	for name := range stageTimes {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for index, name := range names {
		if index != 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %s", name, stageTimes[name])
	}
	return buf.String()
}
