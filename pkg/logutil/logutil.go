// Package logutil provides logging utilities.
//
// Every subsystem obtains its own *log.Logger with GetLogger. All loggers write
// to one shared output, which discards everything until SetOutput or
// SetOutputFile is called.
package logutil

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	out     = io.Discard
	colored = false
	// The mutex also protects the loggers map and each prefix.
	mutex   sync.Mutex
	loggers = map[string]*logger{}
)

type logger struct {
	*log.Logger
	prefix string
}

var prefixColor = color.New(color.FgCyan)

// GetLogger gets a logger with the given prefix, conventionally of the form
// "[subsystem] ". Calls with the same prefix share one logger.
func GetLogger(prefix string) *log.Logger {
	mutex.Lock()
	defer mutex.Unlock()
	if l, ok := loggers[prefix]; ok {
		return l.Logger
	}
	l := &logger{log.New(out, decorate(prefix), log.LstdFlags), prefix}
	loggers[prefix] = l
	return l.Logger
}

// Discard is a logger that ignores everything regardless of SetOutput.
var Discard = log.New(io.Discard, "", 0)

// SetOutput redirects the output of all loggers obtained with GetLogger to the
// new io.Writer. If newout is a terminal, prefixes are colored.
func SetOutput(newout io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	out = newout
	colored = isTerminal(newout)
	for _, l := range loggers {
		l.SetOutput(out)
		l.SetPrefix(decorate(l.prefix))
	}
}

// SetOutputFile redirects the output of all loggers obtained with GetLogger to
// the named file. If the file name is empty, it stops the output.
func SetOutputFile(fname string) error {
	if fname == "" {
		SetOutput(io.Discard)
		return nil
	}
	file, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	SetOutput(file)
	return nil
}

func decorate(prefix string) string {
	if !colored || prefix == "" {
		return prefix
	}
	trimmed := strings.TrimRight(prefix, " ")
	return prefixColor.Sprint(trimmed) + prefix[len(trimmed):]
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
