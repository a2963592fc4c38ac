package rbtree

// FixupCase names one branch of the insertion or deletion rebalancing loops.
type FixupCase uint8

// Insertion cases.
const (
	// InsertRoot paints a parentless cursor black.
	InsertRoot FixupCase = iota
	// InsertRecolor handles a red uncle: parent and uncle turn black, the grandparent red,
	// and the violation moves up to the grandparent.
	InsertRecolor
	// InsertLeftLeft rotates the grandparent right.
	InsertLeftLeft
	// InsertLeftRight rotates the parent left, then the grandparent right.
	InsertLeftRight
	// InsertRightRight rotates the grandparent left.
	InsertRightRight
	// InsertRightLeft rotates the parent right, then the grandparent left.
	InsertRightLeft
)

// Deletion cases.
const (
	// DeleteSimple splices out a red node or a black node with a red child.
	DeleteSimple FixupCase = iota + InsertRightLeft + 1
	// DeleteRoot ends the double-black loop at the root.
	DeleteRoot
	// DeleteRedSibling rotates a red sibling up so that the sibling becomes black.
	DeleteRedSibling
	// DeletePushUp paints the sibling red and moves the deficiency to the black parent.
	DeletePushUp
	// DeleteAbsorb spends the red parent to pay for the missing black.
	DeleteAbsorb
	// DeleteNearNephew rotates a red near nephew into the far position.
	DeleteNearNephew
	// DeleteFarNephew rotates the parent toward the cursor and ends the loop.
	DeleteFarNephew

	numFixupCases
)

var fixupCaseNames = [numFixupCases]string{
	InsertRoot:       "insert_root",
	InsertRecolor:    "insert_recolor",
	InsertLeftLeft:   "insert_left_left",
	InsertLeftRight:  "insert_left_right",
	InsertRightRight: "insert_right_right",
	InsertRightLeft:  "insert_right_left",
	DeleteSimple:     "delete_simple",
	DeleteRoot:       "delete_root",
	DeleteRedSibling: "delete_red_sibling",
	DeletePushUp:     "delete_push_up",
	DeleteAbsorb:     "delete_absorb",
	DeleteNearNephew: "delete_near_nephew",
	DeleteFarNephew:  "delete_far_nephew",
}

// String returns the snake_case name of the case.
func (fc FixupCase) String() string {
	if fc >= numFixupCases {
		return "unknown"
	}

	return fixupCaseNames[fc]
}

// FixupCases returns every case in declaration order.
func FixupCases() []FixupCase {
	cases := make([]FixupCase, numFixupCases)
	for idx := range cases {
		cases[idx] = FixupCase(idx)
	}

	return cases
}

// FixupStats counts how often each fixup case was taken.
type FixupStats [numFixupCases]uint64

// Count returns the number of times fc was taken.
func (stats FixupStats) Count(fc FixupCase) uint64 {
	if fc >= numFixupCases {
		return 0
	}

	return stats[fc]
}

// Total returns the sum over all cases.
func (stats FixupStats) Total() uint64 {
	var total uint64
	for _, count := range stats {
		total += count
	}

	return total
}

// Add accumulates other into stats.
func (stats *FixupStats) Add(other FixupStats) {
	for idx, count := range other {
		stats[idx] += count
	}
}

// Sub returns the per-case difference stats - other.
func (stats FixupStats) Sub(other FixupStats) FixupStats {
	var diff FixupStats
	for idx := range stats {
		diff[idx] = stats[idx] - other[idx]
	}

	return diff
}

func (stats *FixupStats) record(fc FixupCase) {
	stats[fc]++
}
