package matchmaking

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/handle/handletest"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/model"
)

type QueueSuite struct {
	suite.Suite
	metrics *metrics.Metrics
	queue   *Queue
	ctx     context.Context
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.metrics = metrics.New()
	s.queue = NewQueue(s.metrics)
	s.ctx = context.Background()
}

func (s *QueueSuite) handles(ranks ...int) []*handle.Handle {
	hs := make([]*handle.Handle, len(ranks))
	for i, r := range ranks {
		hs[i], _ = handletest.New(s.T(), s.ctx, string(rune('a'+i)), r)
	}
	return hs
}

func (s *QueueSuite) pushAll(hs []*handle.Handle) {
	for _, h := range hs {
		_, err := s.queue.Push(h)
		s.Require().NoError(err)
	}
}

func (s *QueueSuite) TestPushReturnsPosition() {
	hs := s.handles(100, 100)

	pos, err := s.queue.Push(hs[0])
	s.Require().NoError(err)
	s.Equal(1, pos)

	pos, _ = s.queue.Push(hs[1])
	s.Equal(2, pos)
	s.Equal(2, s.queue.Len())
	s.Equal(2.0, testutil.ToFloat64(s.metrics.QueueLength))
}

func (s *QueueSuite) TestPushRejectsDuplicate() {
	hs := s.handles(100)
	_, _ = s.queue.Push(hs[0])

	_, err := s.queue.Push(hs[0])
	s.ErrorIs(err, model.ErrAlreadyQueued)
	s.Equal(1, s.queue.Len())
}

func (s *QueueSuite) TestRemove() {
	hs := s.handles(100, 100, 100)
	s.pushAll(hs)

	s.True(s.queue.Remove(hs[1]))
	s.False(s.queue.Remove(hs[1]))

	s.Equal([]*handle.Handle{hs[0], hs[2]}, s.queue.Snapshot())
	s.Equal(2, s.queue.Position(hs[2]))
	s.Equal(0, s.queue.Position(hs[1]))
}

func (s *QueueSuite) TestTakeFIFORemovesEarliestInOrder() {
	hs := s.handles(1, 2, 3, 4, 5)
	s.pushAll(hs)

	group := s.queue.Take(FIFO{}, 3)

	s.Equal(hs[:3], group)
	s.Equal(hs[3:], s.queue.Snapshot())
	s.Equal(2.0, testutil.ToFloat64(s.metrics.QueueLength))
}

func (s *QueueSuite) TestTakeRankedLeavesQueueUntouchedWithoutGroup() {
	hs := s.handles(100, 250, 140)
	s.pushAll(hs)

	group := s.queue.Take(RankProximity{Threshold: 100}, 3)

	s.Nil(group)
	s.Equal(hs, s.queue.Snapshot())
}

func (s *QueueSuite) TestTakeRankedKeepsRemainingOrder() {
	hs := s.handles(100, 500, 150, 600, 190)
	s.pushAll(hs)

	group := s.queue.Take(RankProximity{Threshold: 100}, 3)

	s.Equal([]*handle.Handle{hs[0], hs[2], hs[4]}, group)
	s.Equal([]*handle.Handle{hs[1], hs[3]}, s.queue.Snapshot())
}

func (s *QueueSuite) TestHeldMemberIsSkippedUntilReleased() {
	hs := s.handles(100, 100, 100, 100)
	_, err := s.queue.Push(hs[0])
	s.Require().NoError(err)

	pos, size, err := s.queue.PushHeld(hs[1])
	s.Require().NoError(err)
	s.Equal(2, pos)
	s.Equal(2, size)

	s.pushAll(hs[2:])
	s.Equal(2, s.queue.Position(hs[1]))

	group := s.queue.Take(FIFO{}, 3)
	s.Equal([]*handle.Handle{hs[0], hs[2], hs[3]}, group)
	s.Equal([]*handle.Handle{hs[1]}, s.queue.Snapshot())
	s.Nil(s.queue.Take(FIFO{}, 1))

	s.True(s.queue.Release(hs[1]))
	s.Equal([]*handle.Handle{hs[1]}, s.queue.Take(FIFO{}, 1))
}

func (s *QueueSuite) TestReleaseAfterRemovalReportsGone() {
	hs := s.handles(100)
	_, _, err := s.queue.PushHeld(hs[0])
	s.Require().NoError(err)

	s.True(s.queue.Remove(hs[0]))
	s.False(s.queue.Release(hs[0]))
	s.Equal(0, s.queue.Len())
}

func (s *QueueSuite) TestSnapshotIsACopy() {
	hs := s.handles(100, 100)
	s.pushAll(hs)

	snap := s.queue.Snapshot()
	snap[0] = nil

	s.Equal(hs[0], s.queue.Snapshot()[0])
}
