package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-stepflow/pkg/config"
)

// debounce collapses bursts of writes (editors, copy tools) into one run.
const debounce = 500 * time.Millisecond

// watch runs the pipeline once, then again after every change of an input
// file, until ctx is done.
func watch(ctx context.Context, cfg *config.Config) error {
	if cfg.Input.Folder == "" {
		return fmt.Errorf("watch requires input.folder")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Input.Folder); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Input.Folder, err)
	}
	log.Info().Str("folder", cfg.Input.Folder).Msg("watching input folder")

	runOnce(ctx, cfg)

	rerun := make(chan struct{}, 1)
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !watchedFile(event.Name, cfg.Input.Extensions) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("input changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			runOnce(ctx, cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// watchedFile reports whether the file has one of the input extensions.
func watchedFile(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
