package opmon

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/bhutils"
)

// StartProcessStatsCollector samples the server process CPU / RSS on the
// given interval and logs them, so that operators can spot an overloaded
// world without attaching a profiler.
func StartProcessStatsCollector(ctx context.Context, collectInterval time.Duration) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		bhlog.Fatalf("opmon: can not find server process: pid = %v", pid)
	}
	bhlog.Infof("opmon: found server process: %s", p)

	go bhutils.RepeatUntilPanicless(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(collectInterval):
			}

			pcnt, err := p.CPUPercentWithContext(ctx)
			if err != nil {
				bhlog.Panicf("opmon: get process cpu percent failed: %s", err)
			}

			var rss uint64
			if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
				rss = mi.RSS
			}

			bhlog.Infof("opmon: cpu percent is %.3f%%, rss is %dKB", pcnt, rss/1024)
		}
	})
}
