// Package async runs blocking work (platform HTTP calls, anything with an
// external round-trip) off the game goroutine. Jobs in the same group run
// sequentially on one worker; results come back through post, so callbacks
// always execute on the game goroutine.
package async

import (
	"sync"

	"github.com/brickhost/brickd/engine/bhutils"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/post"
)

var numAsyncJobWorkersRunning sync.WaitGroup

// AsyncCallback receives the job result; it is posted to the game goroutine
type AsyncCallback func(res interface{}, err error)

func (ac AsyncCallback) callback(res interface{}, err error) {
	if ac != nil {
		post.Post(func() {
			ac(res, err)
		})
	}
}

// AsyncRoutine is the job body; it runs on a worker goroutine and must not
// touch game state
type AsyncRoutine func() (res interface{}, err error)

type asyncJobItem struct {
	routine  AsyncRoutine
	callback AsyncCallback
}

type asyncJobWorker struct {
	jobQueue chan asyncJobItem
}

func newAsyncJobWorker() *asyncJobWorker {
	ajw := &asyncJobWorker{
		jobQueue: make(chan asyncJobItem, consts.ASYNC_JOB_QUEUE_MAXLEN),
	}
	numAsyncJobWorkersRunning.Add(1)
	go bhutils.RepeatUntilPanicless(ajw.loop)
	return ajw
}

func (ajw *asyncJobWorker) appendJob(routine AsyncRoutine, callback AsyncCallback) {
	ajw.jobQueue <- asyncJobItem{routine, callback}
}

func (ajw *asyncJobWorker) loop() {
	for item := range ajw.jobQueue {
		res, err := item.routine()
		item.callback.callback(res, err)
	}
	numAsyncJobWorkersRunning.Done()
}

var (
	asyncJobWorkersLock sync.RWMutex
	asyncJobWorkers     = map[string]*asyncJobWorker{}
)

func getAsyncJobWorker(group string) (ajw *asyncJobWorker) {
	asyncJobWorkersLock.RLock()
	ajw = asyncJobWorkers[group]
	asyncJobWorkersLock.RUnlock()

	if ajw == nil {
		asyncJobWorkersLock.Lock()
		ajw = asyncJobWorkers[group]
		if ajw == nil {
			ajw = newAsyncJobWorker()
			asyncJobWorkers[group] = ajw
		}
		asyncJobWorkersLock.Unlock()
	}
	return
}

// AppendAsyncJob queues a job on the named group's worker
func AppendAsyncJob(group string, routine AsyncRoutine, callback AsyncCallback) {
	ajw := getAsyncJobWorker(group)
	ajw.appendJob(routine, callback)
}

// Shutdown closes all job queues and waits for the workers to drain
func Shutdown() {
	asyncJobWorkersLock.Lock()
	for _, ajw := range asyncJobWorkers {
		close(ajw.jobQueue)
	}
	asyncJobWorkers = map[string]*asyncJobWorker{}
	asyncJobWorkersLock.Unlock()

	numAsyncJobWorkersRunning.Wait()
}
