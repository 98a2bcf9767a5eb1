package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/models"
)

func testConfigs() (config.BrowserConfig, config.ScraperConfig) {
	return config.BrowserConfig{
			MaxPages:       2,
			StartupTimeout: time.Second,
		}, config.ScraperConfig{
			NavigationTimeout: time.Second,
			SelectorTimeout:   100 * time.Millisecond,
			MarkerTimeout:     100 * time.Millisecond,
		}
}

func TestSession_StartFailureIsRetried(t *testing.T) {
	bcfg, _ := testConfigs()
	s := NewSession(bcfg)

	attempts := 0
	s.launch = func(context.Context) (*rod.Browser, *launcher.Launcher, error) {
		attempts++
		return nil, nil, errors.New("chromium not found")
	}

	for i := 0; i < 2; i++ {
		_, err := s.EnsureReady(context.Background())
		require.Error(t, err)
		assert.Equal(t, models.ErrCodeBrowserStart, models.CodeOf(err))
	}
	assert.Equal(t, 2, attempts)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, int64(0), s.Launches())
}

// fakeSession swaps launch, probe and release so no Chromium is needed. Each
// launch returns a distinct placeholder browser.
func fakeSession(t *testing.T, probe func(*rod.Browser) error) (*Session, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	bcfg, _ := testConfigs()
	s := NewSession(bcfg)

	var launched, released atomic.Int32
	s.launch = func(context.Context) (*rod.Browser, *launcher.Launcher, error) {
		launched.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &rod.Browser{}, nil, nil
	}
	s.probe = probe
	s.release = func(*rod.Browser, *launcher.Launcher) { released.Add(1) }
	return s, &launched, &released
}

func TestSession_ConcurrentEnsureReadyLaunchesOnce(t *testing.T) {
	s, launched, _ := fakeSession(t, func(*rod.Browser) error { return nil })

	const callers = 16
	got := make([]*rod.Browser, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := s.EnsureReady(context.Background())
			assert.NoError(t, err)
			got[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), launched.Load())
	assert.Equal(t, int64(1), s.Launches())
	assert.Equal(t, StateReady, s.State())
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestSession_RelaunchesAfterFailedProbe(t *testing.T) {
	var dead atomic.Pointer[rod.Browser]
	s, launched, released := fakeSession(t, func(b *rod.Browser) error {
		if b == dead.Load() {
			return errors.New("websocket closed")
		}
		return nil
	})

	first, err := s.EnsureReady(context.Background())
	require.NoError(t, err)
	again, err := s.EnsureReady(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)

	dead.Store(first)
	second, err := s.EnsureReady(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), launched.Load())
	assert.Equal(t, int64(2), s.Launches())
	assert.Equal(t, int32(1), released.Load())
}

func TestSession_ProbeDoesNotBlockClose(t *testing.T) {
	probing := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	s, _, released := fakeSession(t, func(*rod.Browser) error {
		if calls.Add(1) == 1 {
			return nil
		}
		close(probing)
		<-unblock
		return errors.New("websocket closed")
	})

	_, err := s.EnsureReady(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.EnsureReady(context.Background())
		errc <- err
	}()
	<-probing

	closed := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close waited for the health probe")
	}
	close(unblock)

	assert.Equal(t, models.ErrCodeSessionClosed, models.CodeOf(<-errc))
	assert.Equal(t, int32(1), released.Load())
	assert.Equal(t, int64(1), s.Launches())
}

func TestSession_StartupTimeout(t *testing.T) {
	bcfg, _ := testConfigs()
	bcfg.StartupTimeout = 20 * time.Millisecond
	s := NewSession(bcfg)
	s.launch = func(ctx context.Context) (*rod.Browser, *launcher.Launcher, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}

	_, err := s.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeBrowserStart, models.CodeOf(err))
}

func TestSession_CloseIsTerminal(t *testing.T) {
	bcfg, _ := testConfigs()
	s := NewSession(bcfg)
	launched := false
	s.launch = func(context.Context) (*rod.Browser, *launcher.Launcher, error) {
		launched = true
		return nil, nil, errors.New("unexpected launch")
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	_, err := s.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSessionClosed, models.CodeOf(err))
	assert.False(t, launched)
}

func TestNavigator_RefusesAfterShutdown(t *testing.T) {
	bcfg, scfg := testConfigs()
	n := NewNavigator(NewSession(bcfg), bcfg, scfg)
	require.NoError(t, n.Shutdown())

	page, err := n.Load(context.Background(), "https://www.paulsmith.com/p/1")
	assert.Nil(t, page)
	assert.Equal(t, models.ErrCodeSessionClosed, models.CodeOf(err))
	assert.Equal(t, StateClosed, n.Stats().State)
}

func TestNavigator_SlotWaitHonoursContext(t *testing.T) {
	bcfg, scfg := testConfigs()
	s := NewSession(bcfg)
	s.launch = func(context.Context) (*rod.Browser, *launcher.Launcher, error) {
		return nil, nil, nil
	}
	n := NewNavigator(s, bcfg, scfg)

	// Occupy every slot.
	for i := 0; i < bcfg.MaxPages; i++ {
		<-n.slots
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	page, err := n.Load(ctx, "https://www.paulsmith.com/p/1")
	assert.Nil(t, page)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.Equal(t, 0, n.Stats().ActivePages)
}

func TestIsTrackerHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"pagead2.googlesyndication.com", true},
		{"CDN.Cookielaw.org", true},
		{"www.paulsmith.com", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, isTrackerHost(tt.host))
		})
	}
}

func TestBlockedSet(t *testing.T) {
	got := blockedSet([]string{"Image", "Font", "Bogus"})
	assert.Len(t, got, 2)
	assert.Contains(t, got, proto.NetworkResourceTypeImage)
	assert.Contains(t, got, proto.NetworkResourceTypeFont)
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"Referer": "https://www.google.com/"})
	require.Contains(t, m, "Referer")
	assert.Equal(t, "https://www.google.com/", m["Referer"].Str())
}
