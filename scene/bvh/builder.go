package bvh

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/wavetrace/log"
	"github.com/achilleasa/wavetrace/types"
)

const (
	// The default number of items below which the builder always emits a leaf.
	DefaultMaxLeafItems = 4

	// The default number of SAH buckets evaluated per split.
	DefaultBuckets = 12

	// Partitions with more items are split even if SAH considers the
	// split more expensive than a leaf.
	maxLeafItemsHard = 32

	// The builder will not attempt to bucket centroids if their extent
	// along the split axis is less than this threshold.
	minSideLength float32 = 1e-6

	// Subtrees with at least this many items are built in a separate go-routine.
	parallelBuildThreshold = 4096
)

var (
	// A split scoring strategy that uses the surface area heuristic (SAH).
	SurfaceAreaHeuristic = surfaceAreaHeuristic{
		traversalCost:    1.0,
		intersectionCost: 1.0,
	}
)

// The BoundedVolume interface is implemented by all primitives that can
// be partitioned by the bvh builder.
type BoundedVolume interface {
	BBox() AABB
	Center() types.Vec3
}

// A split scoring strategy. Lower scores are better.
type ScoreStrategy interface {
	// Score splitting a node with bounds parent into two children.
	ScoreSplit(parent, left AABB, leftCount int, right AABB, rightCount int) float32

	// Score a leaf holding count items with the given bounds.
	ScoreLeaf(bounds AABB, count int) float32
}

// Options control the BVH build.
type Options struct {
	// Partitions with this many items or less always form a leaf.
	MaxLeafItems int

	// The number of candidate splits evaluated per node.
	Buckets int

	// The split scoring strategy; defaults to SurfaceAreaHeuristic.
	Strategy ScoreStrategy
}

// Default build options.
func DefaultOptions() Options {
	return Options{
		MaxLeafItems: DefaultMaxLeafItems,
		Buckets:      DefaultBuckets,
		Strategy:     SurfaceAreaHeuristic,
	}
}

type buildItem struct {
	bounds AABB
	center types.Vec3
}

type bucket struct {
	count  int
	bounds AABB
}

type builder struct {
	logger log.Logger

	items   []buildItem
	indices []uint32
	opts    Options

	// Stats
	nodes    atomic.Int64
	leafs    atomic.Int64
	maxDepth atomic.Int64
}

// Construct a BVH from a set of bounded volumes.
//
// At each node the builder picks the axis along which the node bounding box
// has the largest extent, buckets item centroids along that axis and selects
// the bucket boundary with the best score. A leaf is created when the item
// count drops to opts.MaxLeafItems or when no split scores better than
// keeping all items in a leaf.
func Build(workList []BoundedVolume, opts Options) *Tree {
	if opts.MaxLeafItems <= 0 {
		opts.MaxLeafItems = DefaultMaxLeafItems
	}
	if opts.Buckets < 2 {
		opts.Buckets = DefaultBuckets
	}
	if opts.Strategy == nil {
		opts.Strategy = SurfaceAreaHeuristic
	}

	if len(workList) == 0 {
		return &Tree{Root: InvalidNode}
	}

	b := &builder{
		logger:  log.New("bvh builder"),
		items:   make([]buildItem, len(workList)),
		indices: make([]uint32, len(workList)),
		opts:    opts,
	}
	for idx, item := range workList {
		b.items[idx] = buildItem{bounds: item.BBox(), center: item.Center()}
		b.indices[idx] = uint32(idx)
	}

	start := time.Now()
	nodes, root := b.partition(make([]Node, 0, 2*len(workList)/opts.MaxLeafItems+1), 0, len(workList), 0)
	b.logger.Debugf(
		"BVH tree build time: %d ms, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
		time.Since(start).Nanoseconds()/1e6,
		len(workList), b.maxDepth.Load(), b.nodes.Load(), b.leafs.Load(),
	)

	return &Tree{
		Nodes:   nodes,
		Indices: b.indices,
		Root:    root,
	}
}

// Partition the items in indices[start:end]. Nodes are appended to the
// supplied arena; the returned handle points to the new subtree root.
func (b *builder) partition(nodes []Node, start, end, depth int) ([]Node, NodeHandle) {
	b.recordDepth(depth)

	bounds := EmptyAABB()
	centroids := EmptyAABB()
	for _, idx := range b.indices[start:end] {
		bounds.Merge(b.items[idx].bounds)
		centroids.MergePoint(b.items[idx].center)
	}

	count := end - start
	if count <= b.opts.MaxLeafItems {
		return b.createLeaf(nodes, bounds, start, count)
	}

	axis := bounds.MaxAxis()
	if centroids.Diagonal()[axis] < minSideLength {
		axis = centroids.MaxAxis()
	}

	var mid int
	splitBucket, splitScore, ok := b.findSplit(start, end, axis, bounds, centroids)
	switch {
	case !ok && count <= maxLeafItemsHard:
		return b.createLeaf(nodes, bounds, start, count)
	case !ok:
		// All centroids coincide; any even split is as good as another.
		mid = start + count/2
	case splitScore >= b.opts.Strategy.ScoreLeaf(bounds, count) && count <= maxLeafItemsHard:
		return b.createLeaf(nodes, bounds, start, count)
	default:
		mid = b.partitionIndices(start, end, axis, centroids, splitBucket)
	}

	// Add node to list
	nodeIndex := len(nodes)
	nodes = append(nodes, newInternal(bounds, axis))
	b.nodes.Add(1)

	// Partition children and update node indices
	var left, right NodeHandle
	if count >= parallelBuildThreshold {
		var rightNodes []Node
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			rightNodes, _ = b.partition(nil, mid, end, depth+1)
		}()
		nodes, left = b.partition(nodes, start, mid, depth+1)
		wg.Wait()

		offset := len(nodes)
		for idx := range rightNodes {
			rightNodes[idx].offsetChildNodes(int32(offset))
		}
		nodes = append(nodes, rightNodes...)
		right = NodeHandle(offset)
	} else {
		nodes, left = b.partition(nodes, start, mid, depth+1)
		nodes, right = b.partition(nodes, mid, end, depth+1)
	}
	nodes[nodeIndex].setChildNodes(left, right)

	return nodes, NodeHandle(nodeIndex)
}

// Evaluate bucket boundaries along axis and return the best scoring boundary.
// Items whose centroid falls in a bucket <= splitBucket go to the left child.
func (b *builder) findSplit(start, end int, axis Axis, bounds, centroids AABB) (splitBucket int, score float32, ok bool) {
	if centroids.Diagonal()[axis] < minSideLength {
		return 0, 0, false
	}

	numBuckets := b.opts.Buckets
	buckets := make([]bucket, numBuckets)
	for idx := range buckets {
		buckets[idx].bounds = EmptyAABB()
	}
	for _, idx := range b.indices[start:end] {
		bi := bucketIndex(b.items[idx].center, axis, centroids, numBuckets)
		buckets[bi].count++
		buckets[bi].bounds.Merge(b.items[idx].bounds)
	}

	// Sweep from the right to collect suffix bounds
	rightBounds := make([]AABB, numBuckets)
	rightCounts := make([]int, numBuckets)
	acc := EmptyAABB()
	accCount := 0
	for idx := numBuckets - 1; idx > 0; idx-- {
		acc.Merge(buckets[idx].bounds)
		accCount += buckets[idx].count
		rightBounds[idx] = acc
		rightCounts[idx] = accCount
	}

	score = math.MaxFloat32
	leftBounds := EmptyAABB()
	leftCount := 0
	for idx := 0; idx < numBuckets-1; idx++ {
		leftBounds.Merge(buckets[idx].bounds)
		leftCount += buckets[idx].count

		// Make sure that we don't generate empty partitions
		if leftCount == 0 || rightCounts[idx+1] == 0 {
			continue
		}

		candidate := b.opts.Strategy.ScoreSplit(bounds, leftBounds, leftCount, rightBounds[idx+1], rightCounts[idx+1])
		if candidate < score {
			score = candidate
			splitBucket = idx
			ok = true
		}
	}

	return splitBucket, score, ok
}

// Reorder indices[start:end] so that items left of the split come first and
// return the index of the first item on the right side.
func (b *builder) partitionIndices(start, end int, axis Axis, centroids AABB, splitBucket int) int {
	numBuckets := b.opts.Buckets
	lo, hi := start, end-1
	for lo <= hi {
		if bucketIndex(b.items[b.indices[lo]].center, axis, centroids, numBuckets) <= splitBucket {
			lo++
			continue
		}
		b.indices[lo], b.indices[hi] = b.indices[hi], b.indices[lo]
		hi--
	}
	return lo
}

// Setup a leaf node containing all items in indices[start:start+count].
// Returns the index to the node in the bvh node array.
func (b *builder) createLeaf(nodes []Node, bounds AABB, start, count int) ([]Node, NodeHandle) {
	nodeIndex := len(nodes)
	nodes = append(nodes, newLeaf(bounds, uint32(start), uint32(count)))

	// update stats
	b.nodes.Add(1)
	b.leafs.Add(1)

	return nodes, NodeHandle(nodeIndex)
}

func (b *builder) recordDepth(depth int) {
	for {
		cur := b.maxDepth.Load()
		if int64(depth) <= cur || b.maxDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

func bucketIndex(center types.Vec3, axis Axis, centroids AABB, numBuckets int) int {
	extent := centroids.Max[axis] - centroids.Min[axis]
	bi := int(float32(numBuckets) * (center[axis] - centroids.Min[axis]) / extent)
	if bi >= numBuckets {
		bi = numBuckets - 1
	}
	if bi < 0 {
		bi = 0
	}
	return bi
}

// A score implementation that uses the surface area heuristic.
type surfaceAreaHeuristic struct {
	traversalCost    float32
	intersectionCost float32
}

// Score a BVH split using the formula (lower score is better):
//
// traversal + (left area * left count + right area * right count) / parent area * intersection
//
// Degenerate parents with zero area receive the worst possible score.
func (h surfaceAreaHeuristic) ScoreSplit(parent, left AABB, leftCount int, right AABB, rightCount int) float32 {
	parentArea := parent.Cost()
	if parentArea <= 0 {
		return math.MaxFloat32
	}

	weighted := left.Cost()*float32(leftCount) + right.Cost()*float32(rightCount)
	return h.traversalCost + weighted/parentArea*h.intersectionCost
}

// Score a leaf as count * intersection cost.
func (h surfaceAreaHeuristic) ScoreLeaf(_ AABB, count int) float32 {
	return float32(count) * h.intersectionCost
}
