package async

import (
	"sync"
	"testing"
	"time"

	"github.com/brickhost/brickd/engine/post"
)

func init() {
	go func() {
		for {
			post.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
}

func TestAppendAsyncJob(t *testing.T) {
	var wait sync.WaitGroup
	wait.Add(2)
	AppendAsyncJob("test", func() (res interface{}, err error) {
		wait.Done()
		return 1, nil
	}, func(res interface{}, err error) {
		if res.(int) != 1 || err != nil {
			t.Errorf("callback got res=%v err=%v", res, err)
		}
		wait.Done()
	})
	wait.Wait()
}

func TestGroupJobsRunInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	var wait sync.WaitGroup
	wait.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		AppendAsyncJob("ordered", func() (res interface{}, err error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}, func(res interface{}, err error) {
			wait.Done()
		})
	}
	wait.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("job %d ran at position %d", got, i)
		}
	}
}
