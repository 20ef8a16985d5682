package provision

import (
	"fmt"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// TableSpec describes the session table to provision. The zero value is
// invalid; use NewTableSpec.
type TableSpec struct {
	tableName     string
	hashKey       string
	readCapacity  int64
	writeCapacity int64
}

// SpecOption adjusts a TableSpec under construction.
type SpecOption func(*TableSpec)

// WithHashKey overrides the partition key attribute name. Empty names are ignored.
func WithHashKey(name string) SpecOption {
	return func(s *TableSpec) {
		if name != "" {
			s.hashKey = name
		}
	}
}

// NewTableSpec validates and returns a table spec with the default "id" hash key.
func NewTableSpec(tableName string, readCapacity, writeCapacity int64, opts ...SpecOption) (TableSpec, error) {
	spec := TableSpec{
		tableName:     tableName,
		hashKey:       DefaultHashKey,
		readCapacity:  readCapacity,
		writeCapacity: writeCapacity,
	}
	for _, opt := range opts {
		opt(&spec)
	}

	if spec.tableName == "" {
		return TableSpec{}, fmt.Errorf("%w: table name is required", ErrInvalidSpec)
	}
	if !kvstore.ValidTableName(spec.tableName) {
		return TableSpec{}, fmt.Errorf("%w: invalid table name %q", ErrInvalidSpec, spec.tableName)
	}
	if spec.readCapacity <= 0 || spec.writeCapacity <= 0 {
		return TableSpec{}, fmt.Errorf("%w: capacity units must be positive, got read=%d write=%d",
			ErrInvalidSpec, spec.readCapacity, spec.writeCapacity)
	}
	return spec, nil
}

func (s TableSpec) TableName() string    { return s.tableName }
func (s TableSpec) HashKey() string      { return s.hashKey }
func (s TableSpec) ReadCapacity() int64  { return s.readCapacity }
func (s TableSpec) WriteCapacity() int64 { return s.writeCapacity }

func (s TableSpec) valid() bool {
	return s.tableName != "" && s.hashKey != "" && s.readCapacity > 0 && s.writeCapacity > 0
}

func (s TableSpec) ref() kvstore.TableRef {
	return kvstore.TableRef{Name: s.tableName, HashKey: s.hashKey}
}

// ActiveTable is proof that a table was observed active by EnsureTable.
// It can only be obtained from a Provisioner.
type ActiveTable struct {
	ref kvstore.TableRef
}

// Ref returns the table address for record operations.
func (t *ActiveTable) Ref() kvstore.TableRef {
	if t == nil {
		return kvstore.TableRef{}
	}
	return t.ref
}

// Name returns the table name.
func (t *ActiveTable) Name() string { return t.Ref().Name }
