package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersSurviveReopen(t *testing.T) {
	s := newTestSystem(t)
	s.Stats.LifetimeHits = 41
	s.Stats.LifetimeSubmissions = 7
	require.NoError(t, s.Close())

	cfg := s.config
	s2, err := New(&cfg)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, uint64(41), s2.Stats.LifetimeHits)
	assert.Equal(t, uint64(7), s2.Stats.LifetimeSubmissions)
}

func TestSubmissionBumpsLifetimeCounter(t *testing.T) {
	s := newTestSystem(t)
	before := s.Stats.LifetimeSubmissions
	w := postForm(s.Router(), "/submit_form", validForm())
	require.Equal(t, 302, w.Code)
	assert.Equal(t, before+1, s.Stats.LifetimeSubmissions)
}
