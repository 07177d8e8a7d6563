package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/internal/repository"
	"github.com/mbeoliero/supportdesk/internal/testkit"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoginCodeRepo(t *testing.T) {
	clock := testkit.NewClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryLoginCodeRepo(clock.Now)
	ctx := context.Background()

	code, err := repo.Take(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, code)

	require.NoError(t, repo.Put(ctx, 7, "111111", time.Minute))
	require.NoError(t, repo.Put(ctx, 7, "222222", time.Minute))
	code, err = repo.Take(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "222222", code)

	code, err = repo.Take(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, code)

	require.NoError(t, repo.Put(ctx, 7, "333333", time.Minute))
	clock.Advance(time.Minute)
	code, err = repo.Take(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, code)
}
