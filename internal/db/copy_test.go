package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "frame_locations", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"frame_locations"}, []string{"frame_id", "facility_id"}).WillReturnResult(3)

	rows := [][]any{{"f1", "100"}, {"f1", "200"}, {"f1", "300"}}
	n, err := CopyFrom(context.Background(), mock, "frame_locations", []string{"frame_id", "facility_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"frame_locations"}, []string{"frame_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"f1"}}
	_, err = CopyFrom(context.Background(), mock, "frame_locations", []string{"frame_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO frame_locations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
