package gate_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-login/gate"
	"github.com/stretchr/testify/require"
)

func TestOnceTask_ConcurrentCallersShareResult(t *testing.T) {
	task := gate.NewOnceTask[int](5 * time.Second)

	var calls atomic.Int32
	release := make(chan struct{})
	op := func() (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	first := make(chan int, 1)
	go func() {
		v, _ := task.Run(op)
		first <- v
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	const followers = 5
	var wg sync.WaitGroup
	results := make(chan int, followers)
	for i := 0; i < followers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := task.Run(op)
			results <- v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	require.Equal(t, 42, <-first)
	for v := range results {
		require.Equal(t, 42, v)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestOnceTask_TimedOutWaiterRunsItself(t *testing.T) {
	task := gate.NewOnceTask[string](10 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = task.Run(func() (string, error) {
			close(started)
			<-release
			return "slow", nil
		})
	}()
	<-started

	v, err := task.Run(func() (string, error) { return "own", nil })
	require.NoError(t, err)
	require.Equal(t, "own", v)
	close(release)
}

func TestOnceTask_PropagatesError(t *testing.T) {
	task := gate.NewOnceTask[int](time.Second)
	boom := errors.New("boom")

	_, err := task.Run(func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, err := task.Run(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}
