// Package ratelimiter provides a token bucket used to keep bulk operations
// within a table's provisioned throughput.
//
// The bucket starts full and regains RefillRate tokens every RefillInterval,
// never holding more than Capacity. AllowN is non-blocking; WaitN blocks
// until the tokens are granted or the context is done.
//
//	bucket, err := ratelimiter.NewBucket(ratelimiter.PerSecond(5))
//	if err != nil {
//		return err
//	}
//	for _, id := range ids {
//		if err := bucket.Wait(ctx); err != nil {
//			return err
//		}
//		// one write unit per delete
//	}
package ratelimiter
