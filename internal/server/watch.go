package server

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/wI2L/jsondiff"

	"gihan9a/modelsync/internal/change"
	"gihan9a/modelsync/internal/document"
)

var errNotConvertible = errors.New("diff cannot be expressed as model changes")

// WatchModelFile pushes every edit of the model file as changes
func (s *ModelServer) WatchModelFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(s.config.ModelFile)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.config.ModelFile, err)
	}
	s.watcher = watcher
	go s.watchFiles(watcher)
	return nil
}

// watchFiles monitors the model file and synchronizes the model with it
func (s *ModelServer) watchFiles(watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.config.ModelFile)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			data, err := os.ReadFile(event.Name)
			if err != nil {
				s.log.Warnw("Error reading model file", "file", event.Name, "error", err)
				continue
			}
			if err := s.SyncModelFile(data); err != nil {
				s.log.Warnw("Model file only partly applied", "file", event.Name, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Errorw("Watcher error", "error", err)
		}
	}
}

// SyncModelFile brings the model in line with a new version of the model
// file, pushing the differences with the previous version as changes
func (s *ModelServer) SyncModelFile(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Equal(data, s.lastFile) {
		return nil
	}
	next, err := document.Parse(data)
	if err != nil {
		// Probably saved halfway, wait for the next write
		return err
	}

	var changes []*change.Change
	if len(s.lastFile) > 0 {
		changes, err = fileChanges(s.lastFile, data, next)
	}
	if len(s.lastFile) == 0 || err != nil {
		s.log.Debugw("Resetting model from file", "reason", err)
		changes = []*change.Change{change.New(change.KindReset, "", next)}
	}

	var result *multierror.Error
	for _, c := range changes {
		if _, err := s.pushLocked(c); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c, err))
		}
	}
	s.lastFile = data
	s.flushTopics(s.updateVersion())
	return result.ErrorOrNil()
}

// fileChanges converts the JSON Patch between two versions of the file
// into changes. Edits inside JSON arrays become an UPDATE of the key
// holding the array, since arrays are values of the model.
func fileChanges(previous, data []byte, next document.Node) ([]*change.Change, error) {
	ops, err := jsondiff.CompareJSON(previous, data)
	if err != nil {
		return nil, err
	}
	prev, err := document.Parse(previous)
	if err != nil {
		return nil, err
	}

	var changes []*change.Change
	collapsed := make(map[string]bool)
	for _, op := range ops {
		if op.Type == jsondiff.OperationTest {
			continue
		}
		segs, err := pointerSegments(string(op.Path))
		if err != nil {
			return nil, err
		}

		doc := next
		if op.Type == jsondiff.OperationRemove {
			doc = prev
		}
		if i, ok := scalarPrefix(doc, segs); ok {
			if i == 0 || op.Type == jsondiff.OperationMove {
				return nil, errNotConvertible
			}
			position := strings.Join(segs[:i], "/")
			if !collapsed[position] {
				collapsed[position] = true
				changes = append(changes, change.New(change.KindUpdate, position, lookup(next, segs[:i])))
			}
			continue
		}

		position := strings.Join(segs, "/")
		switch op.Type {
		case jsondiff.OperationAdd, jsondiff.OperationCopy:
			changes = append(changes, change.New(change.KindAdd, position, lookup(next, segs)))
		case jsondiff.OperationReplace:
			changes = append(changes, change.New(change.KindUpdate, position, lookup(next, segs)))
		case jsondiff.OperationRemove:
			changes = append(changes, change.New(change.KindDelete, position, nil))
		case jsondiff.OperationMove:
			from, err := pointerSegments(string(op.From))
			if err != nil {
				return nil, err
			}
			if _, ok := scalarPrefix(prev, from); ok {
				return nil, errNotConvertible
			}
			changes = append(changes, change.NewMove(position, strings.Join(from, "/"), ""))
		default:
			return nil, fmt.Errorf("unknown patch operation %q", op.Type)
		}
	}
	return changes, nil
}

// pointerSegments splits a JSON pointer into model position elements
func pointerSegments(pointer string) ([]string, error) {
	if pointer == "" || !strings.HasPrefix(pointer, "/") {
		return nil, errNotConvertible
	}
	segs := strings.Split(pointer[1:], "/")
	for i, seg := range segs {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")
		if seg == "" || strings.Contains(seg, "/") {
			return nil, errNotConvertible
		}
		segs[i] = seg
	}
	return segs, nil
}

// scalarPrefix reports the length of the leading segments reaching a
// value that the remaining segments would have to enter
func scalarPrefix(doc document.Node, segs []string) (int, bool) {
	cur := doc
	for i, seg := range segs {
		obj, ok := document.AsObject(cur)
		if !ok {
			return i, true
		}
		if cur, ok = obj.Get(seg); !ok {
			return 0, false
		}
	}
	return 0, false
}

func lookup(doc document.Node, segs []string) document.Node {
	cur := doc
	for _, seg := range segs {
		obj, ok := document.AsObject(cur)
		if !ok {
			return nil
		}
		if cur, ok = obj.Get(seg); !ok {
			return nil
		}
	}
	return cur
}
