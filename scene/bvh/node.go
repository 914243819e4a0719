package bvh

type NodeKind uint8

const (
	InternalNode NodeKind = iota
	LeafNode
)

// A handle to a node stored in the Tree node arena.
type NodeHandle int32

const InvalidNode NodeHandle = -1

// Bvh nodes are tagged: internal nodes carry two child handles and the axis
// used to split them; leafs carry a contiguous range into Tree.Indices. The
// accessors enforce the tag so a leaf range is never read as child handles.
type Node struct {
	Bounds AABB
	Kind   NodeKind
	Axis   Axis

	left, right NodeHandle
	first       uint32
	count       uint32
}

func newLeaf(bounds AABB, first, count uint32) Node {
	return Node{
		Bounds: bounds,
		Kind:   LeafNode,
		left:   InvalidNode,
		right:  InvalidNode,
		first:  first,
		count:  count,
	}
}

func newInternal(bounds AABB, axis Axis) Node {
	return Node{
		Bounds: bounds,
		Kind:   InternalNode,
		Axis:   axis,
		left:   InvalidNode,
		right:  InvalidNode,
	}
}

func (n *Node) IsLeaf() bool {
	return n.Kind == LeafNode
}

// Get the child handles of an internal node. Leafs return InvalidNode for
// both children.
func (n *Node) Children() (left, right NodeHandle) {
	if n.Kind != InternalNode {
		return InvalidNode, InvalidNode
	}
	return n.left, n.right
}

// Get the primitive index range of a leaf. Internal nodes return an empty range.
func (n *Node) Primitives() (first, count uint32) {
	if n.Kind != LeafNode {
		return 0, 0
	}
	return n.first, n.count
}

func (n *Node) setChildNodes(left, right NodeHandle) {
	n.left = left
	n.right = right
}

// Add offset to indices of child nodes.
func (n *Node) offsetChildNodes(offset int32) {
	// Ignore leafs
	if n.Kind != InternalNode {
		return
	}

	n.left += NodeHandle(offset)
	n.right += NodeHandle(offset)
}

// A flattened BVH. Nodes are stored in an arena in depth-first order
// with the root at Root.
type Tree struct {
	Nodes []Node

	// Leafs reference ranges of this list; each entry is an index into the
	// primitive list passed to Build.
	Indices []uint32

	Root NodeHandle
}

// Returns true if the tree contains no primitives.
func (t *Tree) Empty() bool {
	return t == nil || t.Root == InvalidNode || len(t.Nodes) == 0
}

// Get the scene bounds covered by the tree.
func (t *Tree) Bounds() AABB {
	if t.Empty() {
		return EmptyAABB()
	}
	return t.Nodes[t.Root].Bounds
}
