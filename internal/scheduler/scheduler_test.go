package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every now and then", func(context.Context) error { return nil }, nil)
	assert.Error(t, err)

	s, err := New("", func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec, s.spec)
}

func TestTrigger_SkipsOverlappingRuns(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	s, err := New("@every 1h", func(context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, logging.NewMockLogger())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Trigger()
		close(done)
	}()
	<-started

	s.Trigger()
	assert.Equal(t, int32(1), runs.Load(), "second trigger must be skipped while the first runs")

	close(release)
	<-done
	s.Trigger()
	assert.Equal(t, int32(2), runs.Load())
}

func TestTrigger_LogsJobError(t *testing.T) {
	logger := logging.NewMockLogger()
	s, err := New("@every 1h", func(context.Context) error { return errors.New("boom") }, logger)
	require.NoError(t, err)

	s.Trigger()
	assert.True(t, logger.HasEntry("ERROR", "Scheduled run failed"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type staticSource struct {
	msgs []models.Message
	err  error
}

func (s staticSource) Read() ([]models.Message, error) { return s.msgs, s.err }

type recordingProcessor struct {
	batches int
	err     error
}

func (p *recordingProcessor) ProcessBatch(_ context.Context, msgs []models.Message) ([]pipeline.Outcome, error) {
	p.batches++
	out := make([]pipeline.Outcome, len(msgs))
	for i, m := range msgs {
		out[i] = pipeline.Outcome{MessageID: m.ID, Status: pipeline.StatusCreated}
	}
	return out, p.err
}

func TestPollInbox(t *testing.T) {
	ctx := context.Background()

	t.Run("feeds messages to the processor", func(t *testing.T) {
		proc := &recordingProcessor{}
		job := PollInbox(staticSource{msgs: []models.Message{{ID: "m1"}, {ID: "m2"}}}, proc, nil)
		require.NoError(t, job(ctx))
		assert.Equal(t, 1, proc.batches)
	})

	t.Run("empty inbox skips processing", func(t *testing.T) {
		proc := &recordingProcessor{}
		require.NoError(t, PollInbox(staticSource{}, proc, nil)(ctx))
		assert.Zero(t, proc.batches)
	})

	t.Run("read and batch errors propagate", func(t *testing.T) {
		proc := &recordingProcessor{err: errors.New("store down")}
		assert.Error(t, PollInbox(staticSource{err: errors.New("gone")}, proc, nil)(ctx))
		assert.Error(t, PollInbox(staticSource{msgs: []models.Message{{ID: "m1"}}}, proc, nil)(ctx))
	})
}
