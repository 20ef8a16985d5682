package dynamo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// API defines the DynamoDB operations used by Client.
// It is satisfied by *dynamodb.Client.
type API interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client implements kvstore.Client on top of Amazon DynamoDB.
// It is safe for concurrent use.
type Client struct {
	api            API
	consistentRead bool
	waiterMinDelay time.Duration
	waiterMaxDelay time.Duration
}

var _ kvstore.Client = (*Client)(nil)

// Option defines a function that configures Client.
type Option func(*options)

type options struct {
	httpClient    *http.Client
	api           API
	configOptions []func(*config.LoadOptions) error
	clientOptions []func(*dynamodb.Options)
}

// WithAPI sets a pre-configured DynamoDB API client.
// Useful for testing with mocks.
func WithAPI(api API) Option {
	return func(o *options) {
		o.api = api
	}
}

// WithHTTPClient sets a custom HTTP client for DynamoDB requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithConfigOption adds a custom AWS config option.
func WithConfigOption(option func(*config.LoadOptions) error) Option {
	return func(o *options) {
		o.configOptions = append(o.configOptions, option)
	}
}

// WithClientOption adds a custom DynamoDB client option.
func WithClientOption(option func(*dynamodb.Options)) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, option)
	}
}

// New creates a DynamoDB backed kvstore.Client.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		api:            options.api,
		consistentRead: cfg.ConsistentRead,
		waiterMinDelay: cfg.WaiterMinDelay,
		waiterMaxDelay: cfg.WaiterMaxDelay,
	}
	if c.waiterMinDelay <= 0 {
		c.waiterMinDelay = 2 * time.Second
	}
	if c.waiterMaxDelay < c.waiterMinDelay {
		c.waiterMaxDelay = c.waiterMinDelay
	}

	if c.api != nil {
		return c, nil
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}

	awsOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOptions = append(awsOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretKey,
				"",
			)),
		)
	}
	if options.httpClient != nil {
		awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
	}
	awsOptions = append(awsOptions, options.configOptions...)

	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
	}

	c.api = dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, opt := range options.clientOptions {
			opt(o)
		}
	})

	return c, nil
}

// APIVersion reports the service API generation the SDK speaks.
func (c *Client) APIVersion() string {
	return dynamodb.ServiceAPIVersion
}

// Ping issues the cheapest authenticated request available.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return classifyError(err, "ListTables")
}
