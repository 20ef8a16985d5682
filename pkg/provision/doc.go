// Package provision ensures the session table exists, with the configured
// key schema and provisioned throughput, before any session traffic is served.
//
// Provisioning is a start-up step. The composing application calls
// EnsureTable once and hands the returned ActiveTable to session.NewStore;
// a store cannot be built without it.
//
//	spec, err := provision.NewTableSpec("sessions", 5, 5)
//	if err != nil {
//	    return err
//	}
//	table, err := provision.New(client, provision.WithWaitTimeout(time.Minute)).
//	    EnsureTable(ctx, spec)
//	if err != nil {
//	    return err // abort start-up
//	}
//
// EnsureTable describes the table first. Only a "table not found" answer
// (kvstore.ErrTableNotFound) leads to a create request; every other failure
// is returned joined with ErrUpstream. After creating, it blocks until the
// store reports the table active or the wait timeout elapses (ErrTimeout).
// Cancelling ctx abandons the local wait only (ErrWaitAbandoned).
//
// Two processes starting at once may both try to create the table. The
// loser's kvstore.ErrTableInUse is tolerated and it simply waits.
//
// The key schema encoding (single hash-key element before API generation
// 2012-08-10, attribute definitions plus key schema after) is chosen once
// in New from the client's reported API version.
package provision
