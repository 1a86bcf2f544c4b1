package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 150 * time.Millisecond

func newWatchCmd(opts *rootOptions) *cobra.Command {
	bo := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "watch <segment.yaml>",
		Short: "Rebuild a segment every time its definition changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			build := func(ctx context.Context) {
				res, path, err := buildSegment(ctx, cfg, args[0], bo)
				if err != nil {
					fmt.Fprintf(out, "build failed: %v\n", err)
					return
				}
				fmt.Fprintf(out, "wrote %s (%s)\n", path, res.Metadata.BuildID)
			}
			fmt.Fprintf(out, "watching %s\n", args[0])
			return watchFile(cmd.Context(), args[0], watchDebounce, build)
		},
	}
	bo.flags(cmd)
	return cmd
}

// watchFile runs fn once, then again after each burst of changes to path.
// A change arriving mid-build cancels the running build. It returns when ctx
// is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, fn func(context.Context)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	done := make(chan struct{})
	close(done)
	cancel := context.CancelFunc(func() {})
	start := func() {
		cancel()
		<-done
		var buildCtx context.Context
		buildCtx, cancel = context.WithCancel(ctx)
		finished := make(chan struct{})
		done = finished
		go func() {
			defer close(finished)
			fn(buildCtx)
		}()
	}
	defer func() {
		cancel()
		<-done
	}()

	start()
	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		case <-timer.C:
			start()
		}
	}
}
