package replicator

//go:generate go run go.uber.org/mock/mockgen -source=tree.go -destination=mock_tree_test.go -package=replicator

// Tree is the one-way mirror the sync worker drives. *mirror.Tree
// implements it.
type Tree interface {
	// Sync makes target equal to source, recursively for directories.
	Sync(source, target string) error

	// Purge deletes path and everything beneath it, logging failures.
	Purge(path string)
}
