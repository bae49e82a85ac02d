package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/livepeer/audio-api/errors"
	"github.com/stretchr/testify/require"
)

func TestNewCoordinatorRequiresDeps(t *testing.T) {
	_, err := NewCoordinator(Deps{}, DefaultOptions())
	require.EqualError(t, err, "a blob store is required")

	env := newTestEnv(t, newMemBlobs())
	deps := env.coordinator.deps
	deps.Transcriber = nil
	_, err = NewCoordinator(deps, DefaultOptions())
	require.EqualError(t, err, "a transcriber is required")
}

func TestNewCoordinatorDefaults(t *testing.T) {
	env := newTestEnv(t, newMemBlobs())
	deps := env.coordinator.deps
	deps.OpenShot = nil

	c, err := NewCoordinator(deps, Options{})
	require.NoError(t, err)
	require.NotNil(t, c.deps.OpenShot)
	require.Equal(t, 1, c.opts.StreamParallelism)
	require.Equal(t, DefaultSegmentExtensions, c.opts.SegmentExtensions)
}

func TestRunJobTracksInFlightJobs(t *testing.T) {
	env := newTestEnv(t, newMemBlobs())
	c := env.coordinator

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.runJob(context.Background(), jobTranscribe, "v1/t1", "transcribe/a", func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	require.Equal(t, 1, c.InFlight())
	require.Equal(t, jobTranscribe, c.Jobs.Get("transcribe/a").Type)
	require.ErrorIs(t, c.runJob(context.Background(), jobTranscribe, "v1/t1", "transcribe/a", func() error { return nil }), errJobRunning)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	require.Zero(t, c.InFlight())
}

func TestRunJobRecoversPanics(t *testing.T) {
	env := newTestEnv(t, newMemBlobs())
	err := env.coordinator.runJob(context.Background(), jobSeparate, "v1", "separate/v1", func() error {
		panic("nil map")
	})
	require.Error(t, err)
	require.Equal(t, errors.KindInternal, errors.KindOf(err))
	require.Contains(t, err.Error(), "nil map")
	require.Zero(t, env.coordinator.InFlight())
}

func TestRecovered(t *testing.T) {
	n, err := recovered(func() (int, error) { return 3, nil })
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = recovered(func() (int, error) { return 0, fmt.Errorf("plain") })
	require.EqualError(t, err, "plain")
}
