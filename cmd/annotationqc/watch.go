package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reportPrefix = "qc_report_summary_"

// newTreeWatcher watches root and every directory below it
func newTreeWatcher(root string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTree(watcher, root); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// watchLoop calls rerun once changes have been quiet for debounce, until ctx
// is done. Report files are ignored so a report written inside the data root
// does not retrigger the run.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, log *zap.Logger, rerun func() error) {
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), reportPrefix) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						log.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
				}
			}
			log.Debug("data changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			settle = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", zap.Error(err))
		case <-settle:
			settle = nil
			if err := rerun(); err != nil {
				log.Error("QC re-run failed", zap.Error(err))
			}
		}
	}
}
