package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStats(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordOutcome", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewRedisStats(db, nil)

		mock.ExpectHIncrBy("composite:cb:product", "failure", 1).SetVal(1)

		s.RecordOutcome(ctx, "product", outcomeFailure)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RecordTransition caps the log", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewRedisStats(db, nil, WithStatsPrefix("svc:cb:"), WithMaxTransitions(10))
		s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

		mock.ExpectLPush("svc:cb:review:transitions", "2024-05-01T12:00:00Z closed->open").SetVal(1)
		mock.ExpectLTrim("svc:cb:review:transitions", 0, 9).SetVal("OK")

		s.RecordTransition(ctx, "review", "closed", "open")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redis errors are swallowed", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewRedisStats(db, nil)

		mock.ExpectHIncrBy("composite:cb:review", "success", 1).SetErr(errors.New("connection refused"))

		assert.NotPanics(t, func() { s.RecordOutcome(ctx, "review", outcomeSuccess) })
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Outcomes", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewRedisStats(db, nil)

		mock.ExpectHGetAll("composite:cb:product").SetVal(map[string]string{"success": "12", "rejected": "3", "bogus": "x"})

		got, err := s.Outcomes(ctx, "product")

		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"success": 12, "rejected": 3}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
