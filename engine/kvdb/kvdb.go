package kvdb

import (
	"io"
	"strconv"
	"time"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/config"
	"github.com/brickhost/brickd/engine/kvdb/backend/kvdbmongo"
	"github.com/brickhost/brickd/engine/kvdb/backend/kvdbredis"
	. "github.com/brickhost/brickd/engine/kvdb/types"
	"github.com/brickhost/brickd/engine/opmon"
	"github.com/brickhost/brickd/engine/post"
)

var (
	kvdbEngine     KVDBEngine
	kvdbOpQueue    *xnsyncutil.SyncQueue
	kvdbTerminated *xnsyncutil.OneTimeCond
)

// KVDBGetCallback is the callback of kvdb.Get operations
type KVDBGetCallback func(val string, err error)

// KVDBPutCallback is the callback of kvdb.Put operations
type KVDBPutCallback func(err error)

// KVDBGetRangeCallback is the callback of kvdb.GetRange operations
type KVDBGetRangeCallback func(items []KVItem, err error)

// Initialize the KVDB
//
// Called by the game server during startup. Does nothing when no kvdb
// backend is configured, in which case sanction persistence is disabled.
func Initialize() {
	kvdbCfg := config.GetKVDB()
	if kvdbCfg.Type == "" {
		return
	}

	bhlog.Infof("KVDB initializing, config:\n%s", config.DumpPretty(kvdbCfg))
	kvdbOpQueue = xnsyncutil.NewSyncQueue()
	kvdbTerminated = xnsyncutil.NewOneTimeCond()

	assureKVDBEngineReady()

	go kvdbRoutine()
}

// Enabled reports whether a kvdb backend was configured
func Enabled() bool {
	return kvdbOpQueue != nil
}

func assureKVDBEngineReady() (err error) {
	if kvdbEngine != nil { // connection is valid
		return
	}

	kvdbCfg := config.GetKVDB()

	if kvdbCfg.Type == "mongodb" {
		kvdbEngine, err = kvdbmongo.OpenMongoKVDB(kvdbCfg.Url, kvdbCfg.DB, kvdbCfg.Collection)
	} else if kvdbCfg.Type == "redis" {
		var dbindex int
		dbindex, err = strconv.Atoi(kvdbCfg.DB)
		if err == nil {
			kvdbEngine, err = kvdbredis.OpenRedisKVDB(kvdbCfg.Host, dbindex)
		}
	} else {
		bhlog.Fatalf("KVDB type %s is not implemented", kvdbCfg.Type)
	}
	return
}

type getReq struct {
	key      string
	callback KVDBGetCallback
}

type putReq struct {
	key      string
	val      string
	callback KVDBPutCallback
}

type getRangeReq struct {
	beginKey string
	endKey   string
	callback KVDBGetRangeCallback
}

// Get retrives value of key from KVDB, returns in callback
func Get(key string, callback KVDBGetCallback) {
	kvdbOpQueue.Push(&getReq{
		key, callback,
	})
	checkOperationQueueLen()
}

// Put puts key-value item to KVDB, returns in callback
func Put(key string, val string, callback KVDBPutCallback) {
	kvdbOpQueue.Push(&putReq{
		key, val, callback,
	})
	checkOperationQueueLen()
}

// GetRange retrives key-value items of specified key range, returns in callback
func GetRange(beginKey string, endKey string, callback KVDBGetRangeCallback) {
	kvdbOpQueue.Push(&getRangeReq{
		beginKey, endKey, callback,
	})
	checkOperationQueueLen()
}

// Close closes the KVDB
func Close() {
	if kvdbOpQueue != nil {
		kvdbOpQueue.Close()
	}
}

// WaitTerminated waits for KVDB to quit
func WaitTerminated() {
	if kvdbTerminated != nil {
		kvdbTerminated.Wait()
	}
}

var recentWarnedQueueLen = 0

func checkOperationQueueLen() {
	qlen := kvdbOpQueue.Len()
	if qlen > 100 && qlen%100 == 0 && recentWarnedQueueLen != qlen {
		bhlog.Warnf("KVDB operation queue length = %d", qlen)
		recentWarnedQueueLen = qlen
	}
}

func kvdbRoutine() {
	for {
		err := assureKVDBEngineReady()
		if err != nil {
			bhlog.Errorf("KVDB engine is not ready: %s", err)
			time.Sleep(time.Second)
			continue
		}

		req := kvdbOpQueue.Pop()
		if req == nil { // queue is closed, returning nil
			kvdbEngine.Close()
			break
		}

		var op *opmon.Operation
		if getReq, ok := req.(*getReq); ok {
			op = opmon.StartOperation("kvdb.get")
			handleGetReq(getReq)
		} else if putReq, ok := req.(*putReq); ok {
			op = opmon.StartOperation("kvdb.put")
			handlePutReq(putReq)
		} else if getRangeReq, ok := req.(*getRangeReq); ok {
			op = opmon.StartOperation("kvdb.getRange")
			handleGetRangeReq(getRangeReq)
		}
		op.Finish(time.Millisecond * 100)
	}

	kvdbTerminated.Signal()
}

func handleGetReq(getReq *getReq) {
	val, err := kvdbEngine.Get(getReq.key)
	if getReq.callback != nil {
		post.Post(func() {
			getReq.callback(val, err)
		})
	}

	if err != nil && kvdbEngine.IsConnectionError(err) {
		kvdbEngine.Close()
		kvdbEngine = nil
	}
}

func handlePutReq(putReq *putReq) {
	err := kvdbEngine.Put(putReq.key, putReq.val)
	if putReq.callback != nil {
		post.Post(func() {
			putReq.callback(err)
		})
	}

	if err != nil && kvdbEngine.IsConnectionError(err) {
		kvdbEngine.Close()
		kvdbEngine = nil
	}
}

func handleGetRangeReq(getRangeReq *getRangeReq) {
	it, err := kvdbEngine.Find(getRangeReq.beginKey, getRangeReq.endKey)
	if err != nil {
		if getRangeReq.callback != nil {
			post.Post(func() {
				getRangeReq.callback(nil, err)
			})
		}
		if kvdbEngine.IsConnectionError(err) {
			kvdbEngine.Close()
			kvdbEngine = nil
		}
		return
	}

	var items []KVItem
	for {
		item, err := it.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			if getRangeReq.callback != nil {
				post.Post(func() {
					getRangeReq.callback(nil, err)
				})
			}
			if kvdbEngine.IsConnectionError(err) {
				kvdbEngine.Close()
				kvdbEngine = nil
			}
			return
		}

		items = append(items, item)
	}

	if getRangeReq.callback != nil {
		post.Post(func() {
			getRangeReq.callback(items, nil)
		})
	}
}
