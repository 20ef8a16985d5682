// Package mongo provides MongoDB connection management and a kvstore.Client
// backed by MongoDB collections.
//
// Each table is a collection whose documents are keyed by the record id
// (_id) and carry a TTL index on the record expiry, so MongoDB removes
// expired sessions on its own between garbage collection sweeps. Table
// metadata lives in a separate collection (DefaultMetaCollection) and is
// inserted before the collection is built; a duplicate key on that insert
// is reported as kvstore.ErrTableInUse.
//
// # Usage
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := mongo.NewStorage(db)
//	table, err := provision.New(store).EnsureTable(ctx, spec)
//
//	// Wire health check
//	health := mongo.Healthcheck(store)
//
// # Configuration
//
// Config is populated from MONGODB_* environment variables.
//
// # Error Handling
//
// Connection failures are wrapped in ErrFailedToConnectToMongo. Missing
// tables and records are reported with the kvstore sentinels.
package mongo
