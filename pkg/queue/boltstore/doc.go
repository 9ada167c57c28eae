// Package boltstore implements queue.Store on an embedded bbolt database.
//
// It suits single-node deployments that want durability without running a
// database server. Tasks are JSON values in the "tasks" bucket; the "queued"
// bucket indexes queued ids by big-endian creation micros plus id, so the
// first cursor entry is always the next task to claim.
//
//	store, err := boltstore.Open("/var/lib/taskqueue/queue.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package boltstore
