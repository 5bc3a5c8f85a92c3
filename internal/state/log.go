package state

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stockex/pkg/exception"
)

// RecoveryLog is an append-only file of inventory snapshots, one JSON object
// per line. Only the newest complete line is used on recovery.
type RecoveryLog struct {
	mu   sync.Mutex
	cfg  LogConfig
	path string
	file *os.File
}

// OpenLog opens or creates the log for appending.
func OpenLog(cfg LogConfig) (*RecoveryLog, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create recovery log dir").With("dir", cfg.Dir)
	}
	path := cfg.Path()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, cfg.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "open recovery log").With("path", path)
	}
	return &RecoveryLog{cfg: cfg, path: path, file: file}, nil
}

// Path returns the log file location.
func (l *RecoveryLog) Path() string {
	return l.path
}

// Append writes one snapshot line and syncs it to stable storage before
// returning.
func (l *RecoveryLog) Append(s Snapshot) error {
	if l == nil {
		return exception.ErrNilInstance
	}
	line, err := encodeSnapshot(s)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if _, err := l.file.Write(line); err != nil {
		return errors.Wrap(err, "write snapshot").With("path", l.path)
	}
	if l.cfg.NoSync {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "sync snapshot").With("path", l.path)
	}
	return nil
}

// Compact replaces the log content with the single snapshot s. The new file
// is written aside and renamed over the old one.
func (l *RecoveryLog) Compact(s Snapshot) error {
	if l == nil {
		return exception.ErrNilInstance
	}
	line, err := encodeSnapshot(s)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}

	tmp := l.path + ".tmp"
	if err := writeSynced(tmp, line, l.cfg.Mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return errors.Wrap(err, "replace recovery log").With("path", l.path)
	}
	if err := syncDir(filepath.Dir(l.path)); err != nil {
		logs.Warnf("sync recovery log dir %s, err: %+v", filepath.Dir(l.path), err)
	}

	_ = l.file.Close()
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, l.cfg.Mode)
	if err != nil {
		l.file = nil
		return errors.Wrap(err, "reopen recovery log").With("path", l.path)
	}
	l.file = file
	return nil
}

// Close closes the log file.
func (l *RecoveryLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadLast returns the newest complete snapshot in the file at path. A
// missing or empty file yields ok false. A torn trailing line, left by a
// crash during a write that was never acknowledged, is skipped.
func ReadLast(path string) (snap Snapshot, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, errors.Wrap(err, "open recovery log").With("path", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			s, decErr := decodeSnapshot(trimmed)
			if decErr == nil {
				snap, ok = s, true
			} else {
				logs.Warnf("skip unreadable recovery log line in %s, err: %+v", path, decErr)
			}
		}
		if readErr == io.EOF {
			return snap, ok, nil
		}
		if readErr != nil {
			return Snapshot{}, false, errors.Wrap(readErr, "read recovery log").With("path", path)
		}
	}
}

func writeSynced(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(err, "create file").With("path", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write file").With("path", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sync file").With("path", path)
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
