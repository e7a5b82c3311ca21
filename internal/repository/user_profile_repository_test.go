package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/internal/service"
)

func TestNewUserProfileRepository_Production(t *testing.T) {
	assert.NotNil(t, NewUserProfileRepository(nil))
}

func TestUserProfileRepository_GetByUserID(t *testing.T) {
	age := 31
	tests := []struct {
		name string
		row  *mockRow
		want *model.UserProfile
	}{
		{
			name: "full profile",
			row:  rowOf(int64(501), &age, "VIP"),
			want: &model.UserProfile{UserID: 501, Age: &age, Grade: "VIP"},
		},
		{
			name: "unknown age",
			row:  rowOf(int64(501), (*int)(nil), ""),
			want: &model.UserProfile{UserID: 501},
		},
		{
			name: "no profile",
			row:  errRow(pgx.ErrNoRows),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPool{
				queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
					assert.Contains(t, sql, "FROM user_profiles WHERE user_id = $1")
					assert.Equal(t, []any{int64(501)}, args)
					return tt.row
				},
			}

			repo := NewUserProfileRepositoryWithPool(mock)
			profile, err := repo.GetByUserID(context.Background(), 501)

			require.NoError(t, err)
			assert.Equal(t, tt.want, profile)
		})
	}
}

func TestUserProfileRepository_GetByUserID_Error(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return errRow(errConnLost)
		},
	}

	repo := NewUserProfileRepositoryWithPool(mock)
	profile, err := repo.GetByUserID(context.Background(), 501)

	assert.Nil(t, profile)
	assert.ErrorIs(t, err, service.ErrTransientStore)
}

func TestNewActivityLogRepository_Production(t *testing.T) {
	assert.NotNil(t, NewActivityLogRepository(nil))
}

func TestActivityLogRepository_Insert(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	repo := NewActivityLogRepositoryWithPool(mock)
	err := repo.Insert(context.Background(), model.ActivityLogEntry{
		ActivityID: 7,
		UserID:     501,
		ProductID:  3,
		Quantity:   1,
		Order:      4,
		AdmittedAt: testStart,
	})

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "INSERT INTO activity_logs")
	assert.Equal(t, []any{int64(7), int64(501), int64(3), 1, 4, testStart}, capturedArgs)
}

func TestActivityLogRepository_Insert_Error(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errConnLost
		},
	}

	repo := NewActivityLogRepositoryWithPool(mock)
	err := repo.Insert(context.Background(), model.ActivityLogEntry{})

	assert.ErrorIs(t, err, service.ErrTransientStore)
	assert.Contains(t, err.Error(), "insert activity log")
}
