// Package mongostore implements queue.Store on a MongoDB collection.
//
// Each task is one document. ClaimNext is a single findAndModify that picks
// the oldest queued document by (created, _id) and flips it to active, so
// any number of workers can share the collection. Ids are ObjectID hex
// strings; anything else is reported as queue.ErrNotFound.
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	store, err := mongostore.New(ctx, db, mongostore.WithCollection("jobs"))
package mongostore
