package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog reports startup failures before the structured logger exists.
type EarlyLog struct {
	out     io.Writer
	service string
}

func NewEarlyLog(service string) *EarlyLog {
	return &EarlyLog{out: os.Stderr, service: service}
}

// Fail prints the message and returns it as an error for the command to propagate.
func (l *EarlyLog) Fail(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintf(l.out, "%s: startup failed: %v\n", l.service, err)
	return err
}

func (l *EarlyLog) Warn(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s: warning: %s\n", l.service, fmt.Sprintf(format, args...))
}
