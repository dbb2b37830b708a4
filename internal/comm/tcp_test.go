package comm

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWithRetry(ctx context.Context, addr string, rank, size int) (*TCPComm, error) {
	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		c, err := DialTCPWorker(ctx, addr, rank, size)
		if err == nil {
			return c, nil
		}
		if _, ok := err.(*net.OpError); !ok {
			return nil, err
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return nil, lastErr
}

func TestTCPCommBarrierAndBroadcast(t *testing.T) {
	const size = 3
	const addr = "127.0.0.1:18473"

	var wg sync.WaitGroup
	results := make([]uint64, size)
	errs := make([]error, size)

	wg.Add(1)
	go func() {
		defer wg.Done()
		coord, err := ListenTCPCoordinator(context.Background(), addr, size)
		if err != nil {
			errs[0] = err
			return
		}
		if err := coord.Barrier(context.Background()); err != nil {
			errs[0] = err
			return
		}
		v, err := coord.BroadcastUint64(context.Background(), 0, 777)
		results[0] = v
		errs[0] = err
	}()

	for r := 1; r < size; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker, err := dialWithRetry(context.Background(), addr, r, size)
			if err != nil {
				errs[r] = err
				return
			}
			if err := worker.Barrier(context.Background()); err != nil {
				errs[r] = err
				return
			}
			v, err := worker.BroadcastUint64(context.Background(), 0, 0)
			results[r] = v
			errs[r] = err
		}()
	}

	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "rank %d", i)
	}
	for i, v := range results {
		assert.Equal(t, uint64(777), v, "rank %d", i)
	}
}
