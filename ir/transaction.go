package ir

// Transaction stages edits to one function. Edits made through the Func
// between Stage and Commit become permanent on Commit; Rollback restores the
// function to its exact pre-stage state.
//
// The implementation snapshots the whole function: the arenas are flat
// slices of small structs, so a snapshot is a handful of allocations and
// restoring it cannot miss an edit. One transaction may be live per function
// at a time.
type Transaction struct {
	f    *Func
	snap *Func
	done bool
}

// Stage opens a transaction on f.
func (f *Func) Stage() *Transaction {
	return &Transaction{f: f, snap: f.clone()}
}

// Commit makes the staged edits permanent.
func (tx *Transaction) Commit() {
	checkf(!tx.done, "transaction already committed or rolled back")
	tx.done = true
	tx.snap = nil
}

// Rollback discards every edit made since Stage.
func (tx *Transaction) Rollback() {
	checkf(!tx.done, "transaction already committed or rolled back")
	tx.done = true
	*tx.f = *tx.snap
	tx.snap = nil
}
