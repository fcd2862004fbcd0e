package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	require := require.New(t)

	t.Run("Reused timer is rearmed", func(t *testing.T) {
		timer := GetTimer(5 * time.Millisecond)
		<-timer.C
		PutTimer(timer)

		begin := time.Now()
		timer = GetTimer(30 * time.Millisecond)
		<-timer.C
		require.GreaterOrEqual(time.Since(begin), 25*time.Millisecond)
		PutTimer(timer)
	})

	t.Run("Active timer put back does not fire later", func(t *testing.T) {
		timer := GetTimer(20 * time.Millisecond)
		PutTimer(timer)

		next := GetTimer(200 * time.Millisecond)
		defer PutTimer(next)

		select {
		case <-next.C:
			t.Fatal("stale expiry leaked into a reused timer")
		case <-time.After(60 * time.Millisecond):
		}
	})

	t.Run("Concurrent waits", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	require.True(Sleep(0, nil))
	require.True(Sleep(-time.Second, nil))

	begin := time.Now()
	require.True(Sleep(20*time.Millisecond, nil))
	require.GreaterOrEqual(time.Since(begin), 18*time.Millisecond)

	cancel := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(cancel)
	}()

	begin = time.Now()
	require.False(Sleep(time.Second, cancel))
	require.Less(time.Since(begin), 500*time.Millisecond)
}
