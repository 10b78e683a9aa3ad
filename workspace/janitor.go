package workspace

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Janitor periodically prunes a Workspace's bitcode cache index on a
// cron schedule, dropping entries whose .bc file has disappeared and
// re-indexing any .bc file it finds unindexed.
type Janitor struct {
	ws     *Workspace
	logger *slog.Logger

	mu      sync.Mutex
	cronner *cron.Cron
	entryID cron.EntryID
}

// NewJanitor builds a Janitor that will run ws's cache Prune on the
// given cron schedule (standard five-field cron syntax) once Start is
// called. logger may be nil, in which case slog.Default() is used.
func NewJanitor(ws *Workspace, schedule string, logger *slog.Logger) (*Janitor, error) {
	if ws == nil {
		return nil, errors.New("workspace: janitor requires a non-nil Workspace")
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{ws: ws, logger: logger, cronner: cron.New()}
	id, err := j.cronner.AddFunc(schedule, j.runOnce)
	if err != nil {
		return nil, errors.New("workspace: invalid janitor schedule: " + err.Error())
	}
	j.entryID = id
	return j, nil
}

func (j *Janitor) runOnce() {
	removed, err := j.ws.cache.Prune(j.ws.Root)
	if err != nil {
		j.logger.Error("janitor: cache prune failed", "error", err)
		return
	}
	if len(removed) > 0 {
		j.logger.Info("janitor: pruned stale cache entries", "count", len(removed), "modules", removed)
	}
}

// Start begins running the janitor's schedule in the background.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cronner.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	ctx := j.cronner.Stop()
	<-ctx.Done()
}
