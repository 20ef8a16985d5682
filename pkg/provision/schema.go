package provision

import "github.com/dmitrymomot/dynamosession/pkg/kvstore"

// schemaEncoder renders the session key schema in the encoding a store expects.
type schemaEncoder func(hashKey string) kvstore.KeySchema

// selectSchemaEncoder picks the encoding for the API generation reported by
// the client. Generations are ISO dates, so string order is version order.
func selectSchemaEncoder(apiVersion string) schemaEncoder {
	if apiVersion != "" && apiVersion < kvstore.APIVersion20120810 {
		return legacySchema
	}
	return modernSchema
}

func legacySchema(hashKey string) kvstore.KeySchema {
	return kvstore.LegacyKeySchema{
		HashKeyElement: kvstore.KeyElement{
			AttributeName: hashKey,
			AttributeType: kvstore.AttributeTypeString,
		},
	}
}

func modernSchema(hashKey string) kvstore.KeySchema {
	return kvstore.ModernKeySchema{
		AttributeDefinitions: []kvstore.AttributeDefinition{
			{AttributeName: hashKey, AttributeType: kvstore.AttributeTypeString},
		},
		KeySchema: []kvstore.KeySchemaElement{
			{AttributeName: hashKey, KeyType: kvstore.KeyTypeHash},
		},
	}
}
