package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// ProcStats is a resource sample of a unit's process.
type ProcStats struct {
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
}

// Sampler reads resource usage of a process.
type Sampler func(ctx context.Context, pid int) (ProcStats, error)

// SampleProcess reads RSS and average CPU usage of pid.
func SampleProcess(ctx context.Context, pid int) (ProcStats, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcStats{}, err
	}
	var stats ProcStats
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcStats{}, err
	}
	stats.RSSBytes = mem.RSS
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	return stats, nil
}

// WatchParent blocks until the process that started this one has gone,
// then calls onOrphan. A parentPID of zero or less disables the check and
// WatchParent just waits for ctx.
func WatchParent(ctx context.Context, parentPID int, interval time.Duration, logger *zap.Logger, onOrphan func()) {
	if parentPID <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if orphaned(ctx, parentPID) {
				logger.Warn("supervisor process gone, exiting", zap.Int("supervisorPid", parentPID))
				onOrphan()
				return
			}
		}
	}
}

func orphaned(ctx context.Context, parentPID int) bool {
	exists, err := process.PidExistsWithContext(ctx, int32(parentPID))
	if err == nil && !exists {
		return true
	}
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return false
	}
	ppid, err := self.PpidWithContext(ctx)
	if err != nil {
		return false
	}
	return int(ppid) != parentPID
}
