package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// item is the stored shape of a record, minus the hash key whose
// attribute name is chosen per table.
type item struct {
	Data     []byte `dynamodbav:"data"`
	Expires  int64  `dynamodbav:"expires"`
	Modified int64  `dynamodbav:"modified"`
}

func key(table kvstore.TableRef, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		table.HashKey: &types.AttributeValueMemberS{Value: id},
	}
}

// GetItem reads a single record, or returns kvstore.ErrItemNotFound.
func (c *Client) GetItem(ctx context.Context, table kvstore.TableRef, id string) (*kvstore.Record, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table.Name),
		Key:            key(table, id),
		ConsistentRead: aws.Bool(c.consistentRead),
	})
	if err != nil {
		return nil, classifyError(err, "GetItem")
	}
	if len(out.Item) == 0 {
		return nil, kvstore.ErrItemNotFound
	}

	rec, err := decodeRecord(table, out.Item)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// PutItem writes the whole record in one request, replacing any previous one.
func (c *Client) PutItem(ctx context.Context, table kvstore.TableRef, rec kvstore.Record) error {
	av, err := attributevalue.MarshalMap(item{
		Data:     rec.Data,
		Expires:  rec.Expires,
		Modified: rec.Modified,
	})
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	av[table.HashKey] = &types.AttributeValueMemberS{Value: rec.ID}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table.Name),
		Item:      av,
	})
	return classifyError(err, "PutItem")
}

// DeleteItem removes a record. Deleting a missing record is not an error.
func (c *Client) DeleteItem(ctx context.Context, table kvstore.TableRef, id string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table.Name),
		Key:       key(table, id),
	})
	return classifyError(err, "DeleteItem")
}

// Scan walks every page of the table and returns the records matching any
// of the conditions. Record payloads are not fetched.
func (c *Client) Scan(ctx context.Context, in kvstore.ScanInput) ([]kvstore.Record, error) {
	builder := expression.NewBuilder().WithProjection(expression.NamesList(
		expression.Name(in.Table.HashKey),
		expression.Name(kvstore.AttrExpires),
		expression.Name(kvstore.AttrModified),
	))
	if filter, ok := filterCondition(in.AnyOf); ok {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kvstore.ErrInvalidRequest, err)
	}

	params := &dynamodb.ScanInput{
		TableName:                 aws.String(in.Table.Name),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if in.PageSize > 0 {
		params.Limit = aws.Int32(in.PageSize)
	}

	var records []kvstore.Record
	paginator := dynamodb.NewScanPaginator(c.api, params)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyError(err, "Scan")
		}
		for _, raw := range page.Items {
			rec, err := decodeRecord(in.Table, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, *rec)
		}
	}
	return records, nil
}

func filterCondition(anyOf []kvstore.Condition) (expression.ConditionBuilder, bool) {
	conds := make([]expression.ConditionBuilder, 0, len(anyOf))
	for _, c := range anyOf {
		conds = append(conds, expression.Name(c.Attribute).LessThan(expression.Value(c.Before)))
	}
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.Or(conds[0], conds[1], conds[2:]...), true
	}
}

func decodeRecord(table kvstore.TableRef, raw map[string]types.AttributeValue) (*kvstore.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	rec := &kvstore.Record{
		Data:     it.Data,
		Expires:  it.Expires,
		Modified: it.Modified,
	}
	if v, ok := raw[table.HashKey]; ok {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return nil, errors.New("failed to decode record: hash key is not a string")
		}
		rec.ID = s.Value
	}
	return rec, nil
}
