package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gardenwatch/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

func (m *mockDBTX) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	args := m.Called(ctx, b)
	return args.Get(0).(pgx.BatchResults)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		if row[i] == nil {
			continue
		}
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case **int64:
			val := row[i].(int64)
			*v = &val
		case *string:
			*v = row[i].(string)
		case *float64:
			*v = row[i].(float64)
		case *bool:
			*v = row[i].(bool)
		case *int:
			*v = row[i].(int)
		case *time.Time:
			*v = row[i].(time.Time)
		case **time.Time:
			val := row[i].(time.Time)
			*v = &val
		case *map[string]any:
			*v = row[i].(map[string]any)
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- SubscriptionRepository Tests ---

func TestSubscriptionRepository_Save_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		[]any{int64(7), "https://push/ep", `{"endpoint":"https://push/ep"}`, 55.751, 37.618},
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Save(context.Background(), 7, "https://push/ep", `{"endpoint":"https://push/ep"}`, 55.751, 37.618)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_Save_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Save(context.Background(), 7, "ep", "{}", 0, 0)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSubscriptionRepository_FindByBoundingBox(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	rows := newMockRows([][]any{
		{int64(1), "https://push/a", `{"endpoint":"a"}`, 55.75, 37.62},
		{int64(2), "https://push/b", `{"endpoint":"b"}`, 55.76, 37.61},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"),
		[]any{55.73, 55.77, 37.58, 37.66},
	).Return(rows, nil)

	subs, err := repo.FindByBoundingBox(context.Background(), 55.73, 55.77, 37.58, 37.66)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	require.NotNil(t, subs[0].UserID)
	assert.Equal(t, int64(1), *subs[0].UserID)
	assert.Equal(t, "https://push/a", subs[0].Endpoint)
	assert.Equal(t, `{"endpoint":"a"}`, subs[0].Descriptor)
	assert.Equal(t, 55.75, subs[0].Latitude)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_FindByBoundingBox_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	subs, err := repo.FindByBoundingBox(context.Background(), 0, 1, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"https://push/dead"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(context.Background(), "https://push/dead")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_DeleteForUser_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.DeleteForUser(context.Background(), 7, "https://push/unknown")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundSubscription, appErr.Code)
}
