// Package control owns the two ways an operator can change a running
// supervisor's behavior without a restart: the line-oriented control
// file (key=value, watched with fsnotify) and the declarative TOML
// config file. It also resolves CLI > config file > built-in default
// precedence for the startup settings (mode, roots, executables,
// cgroup slices); the control file's tunables are applied separately.
package control

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// File watches a line-oriented control file and applies key=value
// directives to a RuntimeTunables as they're written, the same
// truncate-on-open-then-reread model the teacher's config loading
// settled for plain files, generalized to a watched one.
type File struct {
	path     string
	tunables *sched.RuntimeTunables
	watcher  *fsnotify.Watcher
}

// NewFile opens an fsnotify watch on path's parent directory (the file
// itself may not exist yet) and returns a File ready for Watch.
func NewFile(path string, tunables *sched.RuntimeTunables) (*File, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := dirOf(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	return &File{path: path, tunables: tunables, watcher: watcher}, nil
}

// Close stops the watcher.
func (f *File) Close() error { return f.watcher.Close() }

// ApplyOnce reads the control file's current contents and applies
// every recognized directive, logging and skipping invalid lines
// without aborting the rest (spec §4.9: "other lines continue to
// apply").
func (f *File) ApplyOnce() error {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := splitDirective(line)
		if !ok {
			log.Printf("[control] ignoring malformed directive: %q", line)
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			n, ok = parseBoolDirective(val)
			if !ok {
				log.Printf("[control] ignoring non-numeric value for %q: %q", key, val)
				continue
			}
		}
		if !f.tunables.Set(key, n) {
			log.Printf("[control] ignoring unrecognized key: %q", key)
		}
	}
	return scanner.Err()
}

// Watch blocks, re-applying the control file on every write/create
// event until stop is closed.
func (f *File) Watch(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.ApplyOnce(); err != nil {
				log.Printf("[control] reapply failed: %v", err)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[control] watcher error: %v", err)
		}
	}
}

func splitDirective(line string) (key, val string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func parseBoolDirective(val string) (int64, bool) {
	switch strings.ToLower(val) {
	case "true", "on", "yes":
		return 1, true
	case "false", "off", "no":
		return 0, true
	default:
		return 0, false
	}
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	if idx == 0 {
		return "/"
	}
	return path[:idx]
}
