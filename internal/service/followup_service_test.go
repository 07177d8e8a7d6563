package service

import (
	"context"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/stretchr/testify/require"
)

func TestFollowUp_ListDueOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.write(t, 1, "Anna", "a")
	h.write(t, 2, "Ben", "b")
	h.write(t, 3, "Carla", "c")
	h.write(t, 4, "Dora", "d")
	_, err := h.conv.SetPriority(ctx, 1, constant.PriorityUrgent)
	require.NoError(t, err)
	_, err = h.conv.SetPriority(ctx, 2, constant.PriorityVIP)
	require.NoError(t, err)

	// Carla 100h ago, Dora 80h ago, Ben 50h ago, Anna 30h ago
	h.answer(t, 3)
	h.clock.Advance(20 * time.Hour)
	h.answer(t, 4)
	h.clock.Advance(30 * time.Hour)
	h.answer(t, 2)
	h.clock.Advance(20 * time.Hour)
	h.answer(t, 1)
	h.clock.Advance(30 * time.Hour)

	due, err := h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, userIds(due))
}

func TestFollowUp_ListDueExclusions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for id, name := range map[int64]string{1: "Due", 2: "Done", 3: "Skipped", 4: "Read", 5: "Archived", 6: "Recent"} {
		h.write(t, id, name, "hallo")
	}
	for _, id := range []int64{1, 2, 3, 5} {
		h.answer(t, id)
	}
	_, err := h.conv.MarkRead(ctx, 4)
	require.NoError(t, err)
	h.clock.Advance(30 * time.Hour)
	h.answer(t, 6)

	_, err = h.followUps.MarkDone(ctx, 2)
	require.NoError(t, err)
	_, err = h.followUps.Skip(ctx, 3, 2)
	require.NoError(t, err)
	_, err = h.conv.Archive(ctx, 5)
	require.NoError(t, err)

	due, err := h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, userIds(due))

	for _, id := range []int64{2, 3, 4, 5, 6} {
		require.False(t, IsDue(h.load(t, id), h.clock.Now(), h.followUps.Threshold()), "user %d", id)
	}
	require.True(t, IsDue(h.load(t, 1), h.clock.Now(), h.followUps.Threshold()))
}

func TestFollowUp_ThresholdBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)

	h.clock.Advance(24*time.Hour - time.Millisecond)
	due, err := h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	h.clock.Advance(time.Millisecond)
	due, err = h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestFollowUp_Skip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)
	h.clock.Advance(30 * time.Hour)

	conv, err := h.followUps.Skip(ctx, 1, 3)
	require.NoError(t, err)
	require.NotNil(t, conv.FollowUpSkippedUntil)
	require.Equal(t, h.clock.Now().Add(72*time.Hour).UnixMilli(), *conv.FollowUpSkippedUntil)

	due, err := h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	// still suppressed at the exact skip end
	h.clock.Advance(72 * time.Hour)
	due, err = h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	h.clock.Advance(time.Millisecond)
	due, err = h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestFollowUp_SkipDefaultsDays(t *testing.T) {
	h := newHarness(t)
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)

	conv, err := h.followUps.Skip(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(DefaultSkipDays*24*time.Hour).UnixMilli(), *conv.FollowUpSkippedUntil)
}

func TestFollowUp_SkipCapped(t *testing.T) {
	h := newHarness(t)
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)

	conv, err := h.followUps.Skip(context.Background(), 1, 200000)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(MaxSkipDays*24*time.Hour).UnixMilli(), *conv.FollowUpSkippedUntil)

	h.clock.Advance(72 * time.Hour)
	due, err := h.followUps.ListDue(context.Background())
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestFollowUp_DoneUntilUserWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)
	h.clock.Advance(30 * time.Hour)

	_, err := h.followUps.MarkDone(ctx, 1)
	require.NoError(t, err)
	h.clock.Advance(30 * 24 * time.Hour)
	due, err := h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	h.write(t, 1, "Anna", "nochmal")
	h.answer(t, 1)
	h.clock.Advance(25 * time.Hour)
	due, err = h.followUps.ListDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestFollowUp_ResetAndStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)

	conv, err := h.followUps.AdvanceStage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, conv.FollowUpStage)
	conv, err = h.followUps.AdvanceStage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, conv.FollowUpStage)

	_, err = h.followUps.MarkDone(ctx, 1)
	require.NoError(t, err)
	conv, err = h.followUps.Reset(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, conv.FollowUpStage)
	require.False(t, conv.FollowUpDone)
	require.Nil(t, conv.FollowUpSkippedUntil)

	_, err = h.followUps.MarkDone(ctx, 404)
	require.True(t, errcode.Is(err, errcode.ErrConvNotFound))
}
