// Package progress renders the advance of long running work, such as a remote
// task or an artifact download, independently from the code doing the work.
package progress

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress of one unit of work at a time. Start resets it.
// A negative total means the amount of work is unknown.
type Reporter interface {
	Start(label string, total int64)
	Set(current int64)
	Finish()
}

// Console draws a progress bar on a terminal.
type Console struct {
	out   io.Writer
	bytes bool
	bar   *progressbar.ProgressBar
}

// NewConsole returns a Console writing to out. With showBytes the bar
// counts bytes instead of percent.
func NewConsole(out io.Writer, showBytes bool) *Console {
	return &Console{out: out, bytes: showBytes}
}

// Start replaces any previous bar with a new one for total units.
func (c *Console) Start(label string, total int64) {
	c.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(c.bytes),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(c.out, "\n") }),
	)
}

// Set moves the bar to current.
func (c *Console) Set(current int64) {
	if c.bar == nil {
		return
	}
	_ = c.bar.Set64(current)
}

// Finish completes the bar. It is a no-op without a bar.
func (c *Console) Finish() {
	if c.bar == nil {
		return
	}
	_ = c.bar.Finish()
	c.bar = nil
}

// Log reports progress as log records, one per ten percent step.
type Log struct {
	logger zerolog.Logger
	label  string
	total  int64
	step   int64
}

// NewLog returns a Log writing to logger.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Start logs the beginning of label.
func (l *Log) Start(label string, total int64) {
	l.label, l.total, l.step = label, total, -1
	l.logger.Info().Str("item", label).Int64("total", total).Msg("started")
}

// Set logs current when it crosses into a new ten percent step.
// Nothing is logged for an unknown total.
func (l *Log) Set(current int64) {
	if l.total <= 0 {
		return
	}
	step := current * 10 / l.total
	if step <= l.step {
		return
	}
	l.step = step
	l.logger.Info().Str("item", l.label).Int64("percent", step*10).Msg("progress")
}

// Finish logs the end of the current item.
func (l *Log) Finish() {
	l.logger.Info().Str("item", l.label).Msg("finished")
}

// Nop discards all progress.
type Nop struct{}

// Start does nothing.
func (Nop) Start(string, int64) {}

// Set does nothing.
func (Nop) Set(int64) {}

// Finish does nothing.
func (Nop) Finish() {}

// Writer counts bytes written through it and forwards the running total to a Reporter.
type Writer struct {
	reporter Reporter
	written  int64
}

// NewWriter returns a Writer reporting to r.
func NewWriter(r Reporter) *Writer {
	return &Writer{reporter: r}
}

// Write counts p and never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	w.reporter.Set(w.written)
	return len(p), nil
}

// Written returns the number of bytes seen so far
func (w *Writer) Written() int64 {
	return w.written
}
