// Package lock keeps two clients from sharing one profile. The holder's
// pid, command and start time are written into the lock file so a refused
// process can say who is in the way.
package lock

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID     int
	Command string
	Since   time.Time
}

// HeldError is returned when another process holds the profile lock.
type HeldError struct {
	Holder
	Path string
}

func (e *HeldError) Error() string {
	who := e.Command
	if who == "" {
		who = "another process"
	}
	msg := fmt.Sprintf("profile in use by %s (pid %d", who, e.PID)
	if !e.Since.IsZero() {
		msg += ", since " + e.Since.Local().Format(time.DateTime)
	}
	return msg + ")"
}

// Lock is an acquired profile lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock at path on behalf of command, creating
// the parent directory if needed. It fails with *HeldError when another
// process holds it.
func Acquire(path, command string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		h, _ := ReadHolder(path)
		return nil, &HeldError{Holder: h, Path: path}
	}

	h := Holder{PID: os.Getpid(), Command: command, Since: time.Now().UTC()}
	if err := writeHolder(f, h); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock holder: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release removes the lock file and drops the lock. Calling it on a nil or
// already released lock does nothing.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\ncommand=%s\nsince=%s\n", h.PID, h.Command, h.Since.Format(time.RFC3339))
	return err
}

// ReadHolder returns the holder recorded in the lock file at path. A
// missing file yields the zero Holder and an error.
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	return parseHolder(string(data)), nil
}

func parseHolder(content string) Holder {
	var h Holder
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "command":
			h.Command = value
		case "since":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}
