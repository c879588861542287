package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_CallbacksRunOnLoop(t *testing.T) {
	d := NewDispatcher(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(loopDone)
	}()

	var results []bool
	var tasks atomic.Int32
	for i := 0; i < 10; i++ {
		ok := i%2 == 0
		d.Submit("job", func() bool {
			tasks.Add(1)
			return ok
		}, func(res bool) {
			results = append(results, res)
		})
	}
	d.Submit("panics", func() bool { panic("boom") }, func(res bool) {
		results = append(results, res)
	})
	d.Submit("fire-and-forget", func() bool { tasks.Add(1); return true }, nil)

	d.Wait()
	cancel()
	<-loopDone

	assert.Equal(t, int32(11), tasks.Load())
	assert.Len(t, results, 11)
	trues := 0
	for _, r := range results {
		if r {
			trues++
		}
	}
	assert.Equal(t, 5, trues)
}
