package replicator

// Batch is a settled snapshot of the pending sets. Each slice is sorted,
// so a directory always precedes its own children.
type Batch struct {
	Deleted  []string
	Created  []string
	Modified []string
}

// Len returns the number of paths in the batch.
func (b Batch) Len() int {
	return len(b.Deleted) + len(b.Created) + len(b.Modified)
}

// Report describes what one sync pass did with a batch.
type Report struct {
	Batch

	// Skipped lists modified paths that were not regular files when the
	// pass ran and were therefore left alone.
	Skipped []string

	// Failed counts paths whose mirror call returned an error.
	Failed int
}
