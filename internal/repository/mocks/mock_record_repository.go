package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"biotab/internal/repository"
	"biotab/internal/table"
)

type MockRecordRepository struct {
	mock.Mock

	Name         string
	RecordSchema table.Schema
}

func (m *MockRecordRepository) TableName() string { return m.Name }

func (m *MockRecordRepository) Schema() table.Schema { return m.RecordSchema }

func (m *MockRecordRepository) Save(ctx context.Context, rs *table.RecordSet) error {
	args := m.Called(ctx, rs)
	return args.Error(0)
}

func (m *MockRecordRepository) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRecordRepository) Query(ctx context.Context, q repository.Query) (repository.Chunks, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Chunks), args.Error(1)
}

func (m *MockRecordRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// StaticChunks is an in-memory repository.Chunks over pre-built record
// sets, for tests that need a consumable chunk sequence without a backend.
type StaticChunks struct {
	Sets   []*table.RecordSet
	FinErr error
	Closed bool

	pos int
}

func NewStaticChunks(sets ...*table.RecordSet) *StaticChunks {
	return &StaticChunks{Sets: sets}
}

func (c *StaticChunks) Next() bool {
	if c.pos >= len(c.Sets) {
		return false
	}
	c.pos++
	return true
}

func (c *StaticChunks) Chunk() *table.RecordSet { return c.Sets[c.pos-1] }

func (c *StaticChunks) Err() error {
	if c.pos >= len(c.Sets) {
		return c.FinErr
	}
	return nil
}

func (c *StaticChunks) Close() error {
	c.Closed = true
	return nil
}
