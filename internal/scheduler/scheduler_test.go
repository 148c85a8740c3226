package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

type runnerStub struct {
	err  error
	runs chan struct{}
}

func (s *runnerStub) Run(_ context.Context) (*models.SyncRunReport, error) {
	s.runs <- struct{}{}
	if s.err != nil {
		return nil, s.err
	}
	return &models.SyncRunReport{ID: "run-1"}, nil
}

func TestManualTriggerRunsOnceEvenWhenDisabled(t *testing.T) {
	runner := &runnerStub{runs: make(chan struct{}, 4)}
	s := New(runner, config.SyncConfig{Enabled: false, Interval: time.Hour}, nil)

	s.Start(context.Background())
	defer s.Stop()

	require.NoError(t, s.Trigger())

	select {
	case <-runner.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("sync run was never executed")
	}
	assert.Empty(t, runner.runs)
}

func TestFailedRunIsNotRetried(t *testing.T) {
	runner := &runnerStub{err: errors.New("boom"), runs: make(chan struct{}, 4)}
	s := New(runner, config.SyncConfig{Enabled: false, Interval: time.Hour}, nil)

	s.Start(context.Background())
	defer s.Stop()

	require.NoError(t, s.Trigger())

	<-runner.runs
	select {
	case <-runner.runs:
		t.Fatal("failed run was requeued")
	case <-time.After(200 * time.Millisecond):
	}
}
