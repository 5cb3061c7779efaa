package lagbuffer

import "github.com/sarchlab/lagbuffer/hooking"

// HookPosInOrder marks an event that was applied directly to the state.
var HookPosInOrder = &hooking.HookPos{Name: "In-Order Update"}

// HookPosOutOfOrder marks an event that required reordering. The detail is a
// ReorderDetail.
var HookPosOutOfOrder = &hooking.HookPos{Name: "Out-of-Order Update"}

// HookPosFold marks an event that left the window and was folded into the
// trailing snapshot.
var HookPosFold = &hooking.HookPos{Name: "Fold"}

// HookPosSwap marks a log swap of a double-buffered reconciler. The detail is
// a SwapDetail.
var HookPosSwap = &hooking.HookPos{Name: "Swap"}

// HookPosCompact marks a snapshot appended to a manual log.
var HookPosCompact = &hooking.HookPos{Name: "Compact"}

// HookPosPrune marks a manual log dropping the entries before its latest
// snapshot. The detail is a PruneDetail.
var HookPosPrune = &hooking.HookPos{Name: "Prune"}

// ReorderDetail describes the work done for an out-of-order event.
type ReorderDetail struct {
	// Replayed is the number of events applied while rebuilding state.
	Replayed int
}

// SwapDetail describes a log swap.
type SwapDetail struct {
	// Dropped is the number of events discarded with the retired log.
	Dropped int

	// Carried is the number of events already present in the new active log.
	Carried int
}

// PruneDetail describes a prune of a manual log.
type PruneDetail struct {
	Dropped int
}
