package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrHealthcheckFailed  = errors.New("dynamodb healthcheck failed")

	// Classified service errors
	ErrAccessDenied = errors.New("access denied")
	ErrThrottled    = errors.New("request throttled") // throughput or request rate exceeded
	ErrValidation   = errors.New("request rejected by validation")
)

// classifyError maps DynamoDB failures onto kvstore and package sentinels.
// The original error stays in the chain for errors.As.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s operation: %w", operation, err)
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return errors.Join(kvstore.ErrTableNotFound, err)
	}

	var riu *types.ResourceInUseException
	if errors.As(err, &riu) {
		return errors.Join(kvstore.ErrTableInUse, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "ResourceNotFoundException":
			return errors.Join(kvstore.ErrTableNotFound, err)
		case "ResourceInUseException":
			return errors.Join(kvstore.ErrTableInUse, err)
		case "AccessDeniedException", "UnrecognizedClientException":
			return fmt.Errorf("%w: %s operation: %w", ErrAccessDenied, operation, err)
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return fmt.Errorf("%w: %s operation: %w", ErrThrottled, operation, err)
		case "ValidationException":
			return fmt.Errorf("%w: %s operation: %w", ErrValidation, operation, err)
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}

// classifyWaitError separates caller cancellation and wait-window expiry
// from service failures returned by the TableExists waiter.
func classifyWaitError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The waiter reports an exhausted window as a plain error, or as a
	// deadline error when the last poll was cut short.
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "exceeded max wait time") {
		return errors.Join(kvstore.ErrWaitTimeout, err)
	}
	return classifyError(err, "WaitUntilActive")
}
