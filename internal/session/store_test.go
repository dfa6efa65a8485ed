package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-cli/internal/config"
	"docchat-cli/internal/model"
)

func TestAuthenticateRequiresTokenAndUser(t *testing.T) {
	tokens := config.NewMemoryTokenStore("")
	s := NewStore(tokens)
	epoch := s.BeginAuth()

	_, err := s.Authenticate(epoch, "", &model.User{ID: 1, Username: "alice"})
	assert.Error(t, err)
	_, err = s.Authenticate(epoch, "T1", nil)
	assert.Error(t, err)

	assert.Equal(t, Authenticating, s.Snapshot().State)
	assert.Empty(t, tokens.Load())
}

func TestAuthenticatePersistsToken(t *testing.T) {
	tokens := config.NewMemoryTokenStore("")
	s := NewStore(tokens)
	epoch := s.BeginAuth()

	snap, err := s.Authenticate(epoch, "T1", &model.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "alice", snap.User.Username)
	assert.Equal(t, "T1", s.Token())
	assert.Equal(t, "T1", tokens.Load())
}

func TestRejectKeepsPersistedToken(t *testing.T) {
	tokens := config.NewMemoryTokenStore("OLD")
	s := NewStore(tokens)
	s.BeginAuth()

	snap := s.Reject("Invalid credentials")
	assert.Equal(t, Rejected, snap.State)
	assert.Nil(t, snap.User)
	assert.Equal(t, "Invalid credentials", snap.LastError)
	assert.Empty(t, s.Token())
	assert.Equal(t, "OLD", tokens.Load())
}

func TestRestoreThenValidate(t *testing.T) {
	tokens := config.NewMemoryTokenStore("T1")
	s := NewStore(tokens)

	epoch := s.Restore(s.PersistedToken())
	snap := s.Snapshot()
	assert.Equal(t, Authenticating, snap.State)
	assert.Nil(t, snap.User)
	assert.Equal(t, "T1", s.Token())

	snap, err := s.Validate(epoch, &model.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, snap.State)
}

func TestClearWipesEverything(t *testing.T) {
	tokens := config.NewMemoryTokenStore("")
	s := NewStore(tokens)
	epoch := s.BeginAuth()
	_, err := s.Authenticate(epoch, "T1", &model.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	before := s.Epoch()

	snap, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.Load())
	assert.Greater(t, s.Epoch(), before)
}

func TestSnapshotUserIsCopy(t *testing.T) {
	s := NewStore(config.NewMemoryTokenStore(""))
	epoch := s.BeginAuth()
	_, err := s.Authenticate(epoch, "T1", &model.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.User.Username = "mallory"
	assert.Equal(t, "alice", s.Snapshot().User.Username)
}

func TestAuthenticateAfterClearIsStale(t *testing.T) {
	tokens := config.NewMemoryTokenStore("")
	s := NewStore(tokens)
	epoch := s.BeginAuth()

	_, err := s.Clear()
	require.NoError(t, err)

	snap, err := s.Authenticate(epoch, "T1", &model.User{ID: 1, Username: "alice"})
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, Anonymous, snap.State)
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.Load())
}

func TestValidateAfterNewAuthIsStale(t *testing.T) {
	s := NewStore(config.NewMemoryTokenStore("T1"))
	epoch := s.Restore("T1")
	s.BeginAuth()

	_, err := s.Validate(epoch, &model.User{ID: 1, Username: "alice"})
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, Authenticating, s.Snapshot().State)
}

func TestAbandonKeepsPersistedToken(t *testing.T) {
	tokens := config.NewMemoryTokenStore("T1")
	s := NewStore(tokens)
	epoch := s.Restore(s.PersistedToken())

	snap, ok := s.Abandon(epoch)
	require.True(t, ok)
	assert.Equal(t, Anonymous, snap.State)
	assert.Empty(t, s.Token())
	assert.Equal(t, "T1", tokens.Load())

	_, ok = s.Abandon(epoch - 1)
	assert.False(t, ok)
}
