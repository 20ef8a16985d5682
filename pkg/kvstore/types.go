package kvstore

import "time"

// API generations of the backing store. Generations compare lexicographically.
const (
	APIVersion20111205 = "2011-12-05"
	APIVersion20120810 = "2012-08-10"
)

// AttributeTypeString is the scalar string attribute type.
const AttributeTypeString = "S"

// KeyTypeHash marks the partition key element of a modern key schema.
const KeyTypeHash = "HASH"

// TableStatus is the provisioning state of a table as reported by the store.
type TableStatus string

const (
	StatusAbsent   TableStatus = "ABSENT"
	StatusCreating TableStatus = "CREATING"
	StatusActive   TableStatus = "ACTIVE"
	StatusUpdating TableStatus = "UPDATING"
	StatusDeleting TableStatus = "DELETING"
)

// Usable reports whether records can be served from a table in this state.
// An updating table keeps serving traffic while its throughput changes.
func (s TableStatus) Usable() bool {
	return s == StatusActive || s == StatusUpdating
}

// TableMetadata describes an existing table.
type TableMetadata struct {
	Name          string      `json:"name"`
	Status        TableStatus `json:"status"`
	HashKey       string      `json:"hash_key"`
	ReadCapacity  int64       `json:"read_capacity"`
	WriteCapacity int64       `json:"write_capacity"`
	ItemCount     int64       `json:"item_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

// KeySchema is one of the key schema encodings understood by a backing store.
// Implementations: LegacyKeySchema, ModernKeySchema.
type KeySchema interface {
	// HashKeyName returns the attribute name of the partition key.
	HashKeyName() string
	keySchema()
}

// KeyElement names a key attribute together with its scalar type.
type KeyElement struct {
	AttributeName string
	AttributeType string
}

// LegacyKeySchema is the single hash-key-element encoding used before
// API generation 2012-08-10.
type LegacyKeySchema struct {
	HashKeyElement KeyElement
}

func (s LegacyKeySchema) HashKeyName() string { return s.HashKeyElement.AttributeName }
func (LegacyKeySchema) keySchema() {}

// AttributeDefinition declares the type of a key attribute.
type AttributeDefinition struct {
	AttributeName string
	AttributeType string
}

// KeySchemaElement assigns a role (HASH or RANGE) to a key attribute.
type KeySchemaElement struct {
	AttributeName string
	KeyType       string
}

// ModernKeySchema is the attribute-definitions plus key-schema pair used
// since API generation 2012-08-10.
type ModernKeySchema struct {
	AttributeDefinitions []AttributeDefinition
	KeySchema            []KeySchemaElement
}

func (s ModernKeySchema) HashKeyName() string {
	for _, el := range s.KeySchema {
		if el.KeyType == KeyTypeHash {
			return el.AttributeName
		}
	}
	return ""
}

func (ModernKeySchema) keySchema() {}

// CreateTableRequest is a request to create a table with provisioned throughput.
type CreateTableRequest struct {
	TableName     string
	KeySchema     KeySchema
	ReadCapacity  int64
	WriteCapacity int64
}

// Validate checks that the request can be sent to a store.
func (r CreateTableRequest) Validate() error {
	if !ValidTableName(r.TableName) || r.KeySchema == nil || r.KeySchema.HashKeyName() == "" {
		return ErrInvalidRequest
	}
	if r.ReadCapacity <= 0 || r.WriteCapacity <= 0 {
		return ErrInvalidRequest
	}
	return nil
}

// Table name length bounds, the same on every backend.
const (
	MinTableNameLength = 3
	MaxTableNameLength = 255
)

// ValidTableName reports whether name follows DynamoDB naming rules:
// 3 to 255 characters from a-z, A-Z, 0-9, '_', '-' and '.'.
// Backends rely on it to keep table names free of key delimiters.
func ValidTableName(name string) bool {
	if len(name) < MinTableNameLength || len(name) > MaxTableNameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}

// TableRef addresses records of one table.
type TableRef struct {
	Name    string
	HashKey string
}

// Record is a stored session. Expires and Modified are Unix seconds.
type Record struct {
	ID       string
	Data     []byte
	Expires  int64
	Modified int64
}

// Record attribute names shared by every backend.
const (
	AttrData     = "data"
	AttrExpires  = "expires"
	AttrModified = "modified"
)

// Condition matches records whose numeric Attribute is strictly less than Before.
type Condition struct {
	Attribute string
	Before    int64
}

func (c Condition) match(r Record) bool {
	switch c.Attribute {
	case AttrExpires:
		return r.Expires < c.Before
	case AttrModified:
		return r.Modified < c.Before
	default:
		return false
	}
}

// ScanInput selects records matching any of the conditions.
// An empty AnyOf matches every record.
type ScanInput struct {
	Table TableRef
	AnyOf []Condition
	// PageSize bounds a single round trip; zero lets the backend decide.
	PageSize int32
}

// Matches reports whether r satisfies the scan filter.
func (in ScanInput) Matches(r Record) bool {
	if len(in.AnyOf) == 0 {
		return true
	}
	for _, c := range in.AnyOf {
		if c.match(r) {
			return true
		}
	}
	return false
}
