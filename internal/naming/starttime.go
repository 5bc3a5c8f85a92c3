package naming

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"
)

const startTimeSuffix = ".start"

// StartTimePath returns <dir>/<instance>.start.
func StartTimePath(dir, instance string) string {
	return filepath.Join(dir, instance+startTimeSuffix)
}

// LoadStartTime returns the persisted start time in unix milliseconds. When
// none exists, now+delay is persisted and returned, so a restarted node hands
// out the same start time as before.
func LoadStartTime(path string, now time.Time, delay time.Duration) (int64, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil || ms <= 0 {
			return 0, errors.Errorf("corrupt start time file %s: %q", path, strings.TrimSpace(string(data)))
		}
		return ms, nil
	}
	if !os.IsNotExist(err) {
		return 0, errors.Wrap(err, "read start time").With("path", path)
	}

	ms := now.Add(delay).UnixMilli()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrap(err, "create start time dir").With("path", path)
	}
	if err := os.WriteFile(path, []byte(strconv.FormatInt(ms, 10)+"\n"), 0o644); err != nil {
		return 0, errors.Wrap(err, "write start time").With("path", path)
	}
	return ms, nil
}
