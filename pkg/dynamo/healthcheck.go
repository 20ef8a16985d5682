package dynamo

import (
	"context"
	"errors"
)

// Healthcheck returns a function that checks DynamoDB reachability.
func Healthcheck(client *Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.Join(ErrHealthcheckFailed, ErrInvalidConfig)
		}
		if err := client.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
