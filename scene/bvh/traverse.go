package bvh

import "github.com/achilleasa/wavetrace/types"

// The traversal stack depth. Trees built by Build are far shallower than this
// for any practical primitive count; deeper trees fall back to a heap stack.
const traversalStackSize = 64

// Test a single primitive against a ray. Implementations must only report
// hits with 0 < t < tMax.
type IntersectFunc func(prim uint32, ray types.Ray, tMax float32) (t float32, hit bool)

// Find the closest primitive intersected by ray within (0, tMax). On a hit
// the returned prim is the index into the primitive list passed to Build.
func (t *Tree) Nearest(ray types.Ray, tMax float32, intersect IntersectFunc) (prim uint32, tHit float32, hit bool) {
	if t.Empty() {
		return 0, tMax, false
	}

	invDir := ray.Dir.Inv()
	closest := tMax

	var stackBuf [traversalStackSize]NodeHandle
	stack := append(stackBuf[:0], t.Root)
	for len(stack) > 0 {
		node := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		tEntry, ok := node.Bounds.Intersect(ray, invDir, closest)
		if !ok || tEntry > closest {
			continue
		}

		if node.Kind == LeafNode {
			first, count := node.Primitives()
			for _, p := range t.Indices[first : first+count] {
				if tp, ok := intersect(p, ray, closest); ok && tp < closest {
					closest = tp
					prim = p
					hit = true
				}
			}
			continue
		}

		// Push the far child first so the near child is visited next. The
		// left child holds the smaller centroids along the split axis.
		left, right := node.Children()
		if ray.Dir[node.Axis] < 0 {
			stack = append(stack, left, right)
		} else {
			stack = append(stack, right, left)
		}
	}

	if !hit {
		return 0, tMax, false
	}
	return prim, closest, true
}

// Returns true if any primitive is intersected by ray within (0, tMax).
// Traversal stops at the first reported hit.
func (t *Tree) Any(ray types.Ray, tMax float32, intersect IntersectFunc) bool {
	if t.Empty() {
		return false
	}

	invDir := ray.Dir.Inv()

	var stackBuf [traversalStackSize]NodeHandle
	stack := append(stackBuf[:0], t.Root)
	for len(stack) > 0 {
		node := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if _, ok := node.Bounds.Intersect(ray, invDir, tMax); !ok {
			continue
		}

		if node.Kind == LeafNode {
			first, count := node.Primitives()
			for _, p := range t.Indices[first : first+count] {
				if _, ok := intersect(p, ray, tMax); ok {
					return true
				}
			}
			continue
		}

		left, right := node.Children()
		stack = append(stack, right, left)
	}

	return false
}
