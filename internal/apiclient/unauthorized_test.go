package apiclient

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/mocks"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/service"
)

type alwaysEnds struct{}

func (alwaysEnds) ForceUnauthorized(context.Context, string) bool { return true }

type neverEnds struct{}

func (neverEnds) ForceUnauthorized(context.Context, string) bool { return false }

func TestUnauthorizedChannel_Debounce(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	nav := &authmocks.RecordingNavigator{}
	ch := NewUnauthorizedChannel(UnauthorizedChannelOptions{
		Sessions:  alwaysEnds{},
		Navigator: nav,
		Debounce:  time.Second,
		Now:       clock,
	})

	assert.True(t, ch.Signal(context.Background(), "tok-1"))
	assert.False(t, ch.Signal(context.Background(), "tok-1"))

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()
	assert.True(t, ch.Signal(context.Background(), "tok-1"))

	assert.Equal(t, []string{domainauth.AuthPath, domainauth.AuthPath}, nav.Paths())
}

func TestUnauthorizedChannel_NoSessionNoRedirect(t *testing.T) {
	ctrl := gomock.NewController(t)
	nav := mocks.NewMockNavigator(ctrl)
	nav.EXPECT().Navigate(gomock.Any(), gomock.Any()).Times(0)

	ch := NewUnauthorizedChannel(UnauthorizedChannelOptions{Sessions: neverEnds{}, Navigator: nav})
	assert.False(t, ch.Signal(context.Background(), "tok-1"))
}

func TestUnauthorizedChannel_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewUnauthorizedChannel(UnauthorizedChannelOptions{Navigator: &authmocks.RecordingNavigator{}})
	})
	assert.Panics(t, func() {
		NewUnauthorizedChannel(UnauthorizedChannelOptions{Sessions: alwaysEnds{}})
	})
}

func TestWriterNavigator(t *testing.T) {
	var buf bytes.Buffer
	n := &WriterNavigator{W: &buf}
	n.Navigate(context.Background(), domainauth.AuthPath)
	assert.Contains(t, buf.String(), "agrimarket login")

	var silent WriterNavigator
	silent.Navigate(context.Background(), domainauth.AuthPath)
}

func TestUnauthorizedChannel_UserLogoutInFlight(t *testing.T) {
	backend := authmocks.NewFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.RevokeFunc = func(ctx context.Context, _ string) error {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	store := authmocks.NewMemoryCredentialStoreWith(backend.DefaultCreds)
	mgr, err := service.NewSessionManager(context.Background(), service.SessionManagerOptions{Backend: backend, Store: store})
	require.NoError(t, err)
	_, err = mgr.Verify(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	nav := &WriterNavigator{W: &buf}
	ch := NewUnauthorizedChannel(UnauthorizedChannelOptions{Sessions: mgr, Navigator: nav})

	done := make(chan error, 1)
	go func() { done <- mgr.Logout(context.Background()) }()

	<-entered
	assert.False(t, ch.Signal(context.Background(), backend.DefaultCreds.Token))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, backend.Calls("revoke"))
	assert.Equal(t, domainauth.PhaseUnauthenticated, mgr.Session().Phase)
	_, ok := store.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, buf.String())
}

func TestUnauthorizedChannel_StaleTokenIgnored(t *testing.T) {
	sess := &staticSession{token: "tok-2"}
	nav := &authmocks.RecordingNavigator{}
	ch := NewUnauthorizedChannel(UnauthorizedChannelOptions{Sessions: sess, Navigator: nav})

	assert.False(t, ch.Signal(context.Background(), "tok-1"))
	assert.Empty(t, nav.Paths())
	assert.Equal(t, "tok-2", sess.Token())
}
