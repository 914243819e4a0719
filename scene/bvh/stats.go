package bvh

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

var (
	ErrPrimitiveNotCovered = errors.New("bvh: primitive not referenced by any leaf")
	ErrPrimitiveDuplicated = errors.New("bvh: primitive referenced by more than one leaf")
	ErrLooseBounds         = errors.New("bvh: node bounds are not the tight union of their children")
	ErrInvalidHandle       = errors.New("bvh: invalid node handle")
)

// Structural statistics for a built tree.
type TreeStats struct {
	Nodes        int
	Leafs        int
	MaxDepth     int
	MaxLeafItems int
	Primitives   int
}

// Collect structural statistics by walking the tree.
func (t *Tree) Collect() TreeStats {
	var stats TreeStats
	if t.Empty() {
		return stats
	}

	var walk func(h NodeHandle, depth int)
	walk = func(h NodeHandle, depth int) {
		node := &t.Nodes[h]
		stats.Nodes++
		stats.MaxDepth = max(stats.MaxDepth, depth)
		if node.IsLeaf() {
			_, count := node.Primitives()
			stats.Leafs++
			stats.Primitives += int(count)
			stats.MaxLeafItems = max(stats.MaxLeafItems, int(count))
			return
		}
		left, right := node.Children()
		walk(left, depth+1)
		walk(right, depth+1)
	}
	walk(t.Root, 0)

	return stats
}

// Generate a table with tree statistics.
func (t *Tree) Stats() string {
	stats := t.Collect()

	avgLeafItems := float32(0)
	if stats.Leafs > 0 {
		avgLeafItems = float32(stats.Primitives) / float32(stats.Leafs)
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"BVH", "Value"})
	table.Append([]string{"Nodes", fmt.Sprint(stats.Nodes)})
	table.Append([]string{"Leafs", fmt.Sprint(stats.Leafs)})
	table.Append([]string{"Max depth", fmt.Sprint(stats.MaxDepth)})
	table.Append([]string{"Primitives", fmt.Sprint(stats.Primitives)})
	table.Append([]string{"Max items/leaf", fmt.Sprint(stats.MaxLeafItems)})
	table.Append([]string{"Avg items/leaf", fmt.Sprintf("%.2f", avgLeafItems)})
	table.Render()

	return buf.String()
}

// Check that the tree is sound with respect to the primitives it was built
// from: every primitive is referenced by exactly one leaf and every node box
// is the tight union of its children (or of its primitives for leafs).
func (t *Tree) Validate(workList []BoundedVolume) error {
	if t.Empty() {
		if len(workList) != 0 {
			return fmt.Errorf("%w: tree is empty but %d primitives were supplied", ErrPrimitiveNotCovered, len(workList))
		}
		return nil
	}

	seen := make([]bool, len(workList))

	var visit func(h NodeHandle) (AABB, error)
	visit = func(h NodeHandle) (AABB, error) {
		if h < 0 || int(h) >= len(t.Nodes) {
			return AABB{}, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
		}

		node := &t.Nodes[h]
		union := EmptyAABB()
		if node.IsLeaf() {
			first, count := node.Primitives()
			for _, p := range t.Indices[first : first+count] {
				if int(p) >= len(workList) {
					return AABB{}, fmt.Errorf("%w: primitive index %d out of range", ErrInvalidHandle, p)
				}
				if seen[p] {
					return AABB{}, fmt.Errorf("%w: %d", ErrPrimitiveDuplicated, p)
				}
				seen[p] = true
				union.Merge(workList[p].BBox())
			}
		} else {
			left, right := node.Children()
			for _, child := range []NodeHandle{left, right} {
				childBounds, err := visit(child)
				if err != nil {
					return AABB{}, err
				}
				if !node.Bounds.Contains(childBounds) {
					return AABB{}, fmt.Errorf("%w: node %d does not contain child %d", ErrLooseBounds, h, child)
				}
				union.Merge(childBounds)
			}
		}

		if union != node.Bounds {
			return AABB{}, fmt.Errorf("%w: node %d", ErrLooseBounds, h)
		}
		return node.Bounds, nil
	}

	if _, err := visit(t.Root); err != nil {
		return err
	}

	for p, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: %d", ErrPrimitiveNotCovered, p)
		}
	}
	return nil
}
