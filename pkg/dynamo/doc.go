// Package dynamo implements kvstore.Client on Amazon DynamoDB using the AWS
// SDK for Go v2.
//
// Tables are created with provisioned throughput and a single string hash
// key. Records are stored as items holding the hash key plus the "data",
// "expires" and "modified" attributes. Service errors are mapped onto the
// kvstore sentinels (kvstore.ErrTableNotFound, kvstore.ErrTableInUse) so
// callers never inspect SDK types directly.
//
// Basic usage:
//
//	client, err := dynamo.New(ctx, dynamo.Config{
//		Region:   "us-east-1",
//		Endpoint: "http://localhost:8000", // DynamoDB Local
//	})
//	if err != nil {
//		return err
//	}
//	table, err := provision.New(client).EnsureTable(ctx, spec)
//
// Tests substitute the SDK client through WithAPI.
//
// The SDK only speaks the 2012-08-10 API, so CreateTable rejects the legacy
// key schema encoding with kvstore.ErrUnsupportedKeySchema.
package dynamo
