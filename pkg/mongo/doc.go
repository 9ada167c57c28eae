// Package mongo connects to MongoDB using environment-driven configuration.
//
// Connect retries the initial handshake, which smooths over containers that
// start before the database accepts connections:
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store, err := mongostore.New(ctx, db)
//
// Healthcheck returns a ping check for readiness endpoints.
package mongo
