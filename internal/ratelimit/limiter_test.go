package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainLimiter_SeparateBucketsPerHost(t *testing.T) {
	dl := NewDomainLimiter(1, 1)

	assert.True(t, dl.Allow("https://www.amazon.com/dp/1"))
	assert.False(t, dl.Allow("https://www.amazon.com/dp/2"))
	assert.True(t, dl.Allow("https://www.wayfair.com/p/1"))
	assert.Equal(t, 2, dl.Hosts())
}

func TestDomainLimiter_HostIsCaseInsensitive(t *testing.T) {
	dl := NewDomainLimiter(1, 1)

	assert.True(t, dl.Allow("https://Shop.Example.com/a"))
	assert.False(t, dl.Allow("https://shop.example.com/b"))
}

func TestDomainLimiter_SubdomainsShareBucket(t *testing.T) {
	dl := NewDomainLimiter(1, 1)

	assert.True(t, dl.Allow("https://www.wayfair.co.uk/p/1"))
	assert.False(t, dl.Allow("https://secure.img1-fg.wayfair.co.uk/im/1.jpg"))
	assert.True(t, dl.Allow("https://www.argos.co.uk/p/1"))
	assert.Equal(t, 2, dl.Hosts())
}

func TestBucketKey(t *testing.T) {
	tests := map[string]string{
		"https://www.amazon.com/dp/1":      "amazon.com",
		"https://Shop.Example.COM:8443/a":  "example.com",
		"http://127.0.0.1:8080/p":          "127.0.0.1",
		"http://localhost/p":               "localhost",
		"/relative/path":                   "",
		"https://shop.example.co.uk/p?x=1": "example.co.uk",
	}
	for in, want := range tests {
		assert.Equal(t, want, bucketKey(in), in)
	}
}

func TestDomainLimiter_InvalidURLPassesThrough(t *testing.T) {
	dl := NewDomainLimiter(1, 1)
	require.NoError(t, dl.Wait(context.Background(), "::not a url"))
}

func TestDomainLimiter_WaitHonoursContext(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	require.True(t, dl.Allow("https://slow.example.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, dl.Wait(ctx, "https://slow.example.com/again"))
}

func TestGate_BoundsConcurrency(t *testing.T) {
	g := NewGate(2, 0)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestGate_CancelledContext(t *testing.T) {
	g := NewGate(1, 0)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx)
	assert.Error(t, err)
}

func TestGate_NilAdmitsEverything(t *testing.T) {
	var g *Gate
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	release()
}
