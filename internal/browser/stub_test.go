package browser_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pumpkin/internal/browser"
)

func TestStubDriverTracksConcurrency(t *testing.T) {
	stub := &browser.StubDriver{Delay: 20 * time.Millisecond}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := stub.RunTest(context.Background(), "https://example.com", "example.com", "/tmp/s.png", "/tmp/n.har")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, stub.MaxConcurrent(), int64(1))
	assert.LessOrEqual(t, stub.MaxConcurrent(), int64(5))
}

func TestStubDriverTimeout(t *testing.T) {
	stub := &browser.StubDriver{TimeoutURLs: map[string]bool{"https://slow.example.com": true}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	m, err := stub.RunTest(ctx, "https://slow.example.com", "slow.example.com", "/tmp/s.png", "/tmp/n.har")
	require.NoError(t, err)
	assert.Equal(t, "TIMEOUT", string(m.Status))
}

func TestStubDriverFailure(t *testing.T) {
	stub := &browser.StubDriver{FailURLs: map[string]bool{"https://bad.example.com": true}}

	m, err := stub.RunTest(context.Background(), "https://bad.example.com", "bad.example.com", "/tmp/s.png", "/tmp/n.har")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(m.Status))
}
