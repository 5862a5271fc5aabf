package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
}

func (s recordingService) Name() string { return s.name }

func (s recordingService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s recordingService) Stop(context.Context) error {
	*s.log = append(*s.log, "stop:"+s.name)
	return nil
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "journal", log: &log}))
	require.NoError(t, m.Register(recordingService{name: "publisher", log: &log}))
	assert.ErrorIs(t, m.Register(recordingService{name: "journal", log: &log}), ErrDuplicateService)
	assert.Equal(t, []string{"journal", "publisher"}, m.Services())

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start:journal", "start:publisher", "stop:publisher", "stop:journal"}, log)
}

func TestManagerUnwindsOnStartFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "journal", log: &log}))
	require.NoError(t, m.Register(recordingService{name: "publisher", log: &log, startErr: boom}))
	require.NoError(t, m.Register(recordingService{name: "engine", log: &log}))

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:journal", "stop:journal"}, log)
}
