package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/agentcore/agentcore/internal/logging"
	"github.com/agentcore/agentcore/pkg/types"
)

// Watcher hot-reloads a workspace's PolicyConfig whenever
// {workspace}/agent.config.json (or the global override) changes on
// disk, so a long-running session picks up allow/deny edits without a
// restart (spec.md §9 "Global availability caches" sibling concern;
// grounded on fsnotify usage in the pack's vanducng-goclaw/jack-phare-goat
// repos — see DESIGN.md).
type Watcher struct {
	workspace string
	fsw       *fsnotify.Watcher
	onChange  func(*PolicyConfigResult)
	stop      chan struct{}
}

// PolicyConfigResult bundles a reload outcome so callers can distinguish
// a bad edit (kept serving the last-good config) from a clean reload.
type PolicyConfigResult struct {
	Config *types.PolicyConfig
	Err    error
}

// NewWatcher starts watching the global and workspace config file
// directories. onChange fires on every filesystem event touching either
// path, after a fresh Load(workspace) attempt. Call Stop to release the
// underlying inotify/kqueue handle.
func NewWatcher(workspace string, onChange func(*PolicyConfigResult)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{workspace: workspace, fsw: fsw, onChange: onChange, stop: make(chan struct{})}

	for _, dir := range watchDirs(workspace) {
		if err := fsw.Add(dir); err != nil {
			logging.Debug().Str("dir", dir).Err(err).Msg("config: watch dir unavailable, skipping")
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != GlobalConfigPath() && ev.Name != WorkspaceConfigPath(w.workspace) {
				continue
			}
			cfg, err := Load(w.workspace)
			if w.onChange != nil {
				w.onChange(&PolicyConfigResult{Config: cfg, Err: err})
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("config: watcher error")
		}
	}
}

// Stop terminates the watch loop and closes the underlying handle.
func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.fsw.Close()
}

func watchDirs(workspace string) []string {
	dirs := []string{GetPaths().Config}
	if workspace != "" {
		dirs = append(dirs, workspace)
	}
	return dirs
}
