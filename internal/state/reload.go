package state

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sealproxy/sealproxy/internal/config"
)

// StartReload watches the parent directory of the config file at path for
// write, create, and rename events naming the target file — a create
// covers a file renamed atop it, the canonical safe-write pattern editors
// and config-management tools use — and rebuilds and swaps the live State
// on each such event.
//
// The watch goroutine runs for the life of the process. If the watcher's
// event or error stream ends, that is treated as a fatal invariant
// violation and the process exits.
func StartReload(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)
	name := filepath.Base(absPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go watchLoop(watcher, absPath, name)
	return nil
}

func watchLoop(watcher *fsnotify.Watcher, absPath, name string) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				log.Fatal().Msg("config watcher event stream ended unexpectedly")
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			reload(absPath)

		case err, ok := <-watcher.Errors:
			if !ok {
				log.Fatal().Msg("config watcher error stream ended unexpectedly")
				return
			}
			log.Warn().Err(err).Msg("config watcher reported an error")
		}
	}
}

func reload(path string) {
	log.Warn().Str("path", path).Msg("reloading configuration")

	cfg, err := config.Load(path)
	if err != nil {
		log.Warn().Err(err).Msg("config reload failed, retaining previous state")
		return
	}
	s, err := FromConfig(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("config reload failed, retaining previous state")
		return
	}
	store(s)
	log.Info().Msg("configuration reloaded")
}
