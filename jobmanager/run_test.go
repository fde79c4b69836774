package jobmanager

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/jobcache/types/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"net/http"
	"testing"
	"time"
)

func freePort(t *testing.T) uint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return uint(l.Addr().(*net.TCPAddr).Port)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	cfg, err := config.NewAppConfig("test",
		config.WithMemoryStorage(),
		config.WithArtifactDir(t.TempDir()),
		config.WithHTTPPort(port),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/fibonacci/test", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg, err := config.NewAppConfig("test", config.WithMemoryStorage(), config.WithArtifactDir(t.TempDir()))
	require.NoError(t, err)
	cfg.EntryEncoding = "xml"

	assert.Error(t, Run(context.Background(), cfg))
}
