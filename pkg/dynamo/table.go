package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// DescribeTable returns the table metadata, or kvstore.ErrTableNotFound.
func (c *Client) DescribeTable(ctx context.Context, name string) (*kvstore.TableMetadata, error) {
	out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return nil, classifyError(err, "DescribeTable")
	}
	if out.Table == nil {
		return &kvstore.TableMetadata{Name: name, Status: kvstore.StatusAbsent}, nil
	}
	return tableMetadata(out.Table), nil
}

// CreateTable issues a provisioned-throughput CreateTable request.
// Only the 2012-08-10 key schema encoding can be sent by this SDK.
func (c *Client) CreateTable(ctx context.Context, req kvstore.CreateTableRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	schema, ok := req.KeySchema.(kvstore.ModernKeySchema)
	if !ok {
		return fmt.Errorf("%w: %T", kvstore.ErrUnsupportedKeySchema, req.KeySchema)
	}

	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(req.TableName),
		BillingMode: types.BillingModeProvisioned,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(req.ReadCapacity),
			WriteCapacityUnits: aws.Int64(req.WriteCapacity),
		},
	}
	for _, def := range schema.AttributeDefinitions {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(def.AttributeName),
			AttributeType: types.ScalarAttributeType(def.AttributeType),
		})
	}
	for _, el := range schema.KeySchema {
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(el.AttributeName),
			KeyType:       types.KeyType(el.KeyType),
		})
	}

	_, err := c.api.CreateTable(ctx, in)
	return classifyError(err, "CreateTable")
}

// WaitUntilActive polls DescribeTable through the SDK waiter until the table
// is ACTIVE or timeout elapses.
func (c *Client) WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(c.api, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = c.waiterMinDelay
		o.MaxDelay = c.waiterMaxDelay
	})
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, timeout)
	return classifyWaitError(ctx, err)
}

func tableMetadata(t *types.TableDescription) *kvstore.TableMetadata {
	meta := &kvstore.TableMetadata{
		Name:   aws.ToString(t.TableName),
		Status: tableStatus(t.TableStatus),
	}
	for _, el := range t.KeySchema {
		if el.KeyType == types.KeyTypeHash {
			meta.HashKey = aws.ToString(el.AttributeName)
		}
	}
	if pt := t.ProvisionedThroughput; pt != nil {
		meta.ReadCapacity = aws.ToInt64(pt.ReadCapacityUnits)
		meta.WriteCapacity = aws.ToInt64(pt.WriteCapacityUnits)
	}
	meta.ItemCount = aws.ToInt64(t.ItemCount)
	meta.CreatedAt = aws.ToTime(t.CreationDateTime)
	return meta
}

func tableStatus(s types.TableStatus) kvstore.TableStatus {
	switch s {
	case types.TableStatusCreating:
		return kvstore.StatusCreating
	case types.TableStatusActive:
		return kvstore.StatusActive
	case types.TableStatusUpdating:
		return kvstore.StatusUpdating
	case types.TableStatusDeleting:
		return kvstore.StatusDeleting
	default:
		// ARCHIVING, ARCHIVED, INACCESSIBLE_ENCRYPTION_CREDENTIALS
		return kvstore.TableStatus(s)
	}
}
