package sim

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ClockField is the entry field carrying the simulated time of an event.
const ClockField = "clock"

// ClockFormatter renders entries as "<prefix>[<sec>.<nsec>] <message>".
type ClockFormatter struct {
	Prefix string
}

// Format implements logrus.Formatter.
func (f *ClockFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(f.Prefix)
	if t, ok := entry.Data[ClockField].(SimTime); ok {
		// log stamps keep the unpadded <sec>.<nsec> form
		fmt.Fprintf(&b, "[%d.%d] ", t.Seconds, t.Nanoseconds)
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// EventLog is the append-only simulation log. Every line is stamped with the
// simulated clock at the moment it is written.
type EventLog struct {
	logger *logrus.Logger
	clock  *Clock
	out    io.Writer
}

// NewEventLog writes to out with the given line prefix. Debug events are
// emitted only when debug is true.
func NewEventLog(out io.Writer, prefix string, clock *Clock, debug bool) *EventLog {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&ClockFormatter{Prefix: prefix})
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return &EventLog{logger: logger, clock: clock, out: out}
}

// Eventf logs one simulation event.
func (l *EventLog) Eventf(format string, args ...any) {
	l.logger.WithField(ClockField, l.clock.Now()).Infof(format, args...)
}

// Debugf logs a verbose event such as a memory map dump.
func (l *EventLog) Debugf(format string, args ...any) {
	l.logger.WithField(ClockField, l.clock.Now()).Debugf(format, args...)
}

// DebugEnabled reports whether Debugf lines are written.
func (l *EventLog) DebugEnabled() bool {
	return l.logger.IsLevelEnabled(logrus.DebugLevel)
}

// Writer returns the raw sink, for unstamped output such as the summary.
func (l *EventLog) Writer() io.Writer {
	return l.out
}

// OpenLogFile truncates (or creates) path for a fresh run.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}
