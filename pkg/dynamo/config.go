package dynamo

import "time"

// Config contains connection settings for DynamoDB.
type Config struct {
	Region      string `env:"DYNAMODB_REGION" envDefault:"us-east-1"`
	AccessKeyID string `env:"DYNAMODB_ACCESS_KEY_ID"`
	SecretKey   string `env:"DYNAMODB_SECRET_ACCESS_KEY"`
	Endpoint    string `env:"DYNAMODB_ENDPOINT"` // Optional: DynamoDB Local or another compatible endpoint

	ConsistentRead bool `env:"DYNAMODB_CONSISTENT_READ" envDefault:"true"`

	// Bounds for the delay between DescribeTable polls while waiting for a table.
	WaiterMinDelay time.Duration `env:"DYNAMODB_WAITER_MIN_DELAY" envDefault:"2s"`
	WaiterMaxDelay time.Duration `env:"DYNAMODB_WAITER_MAX_DELAY" envDefault:"20s"`
}
