// Package vcd writes Value Change Dump traces of simulator signals.
package vcd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/blocksim/hdl"
)

// ErrClosed is returned when the writer is used after Close.
var ErrClosed = errors.New("vcd: writer closed")

type kind int

const (
	kindWire kind = iota
	kindInteger
	kindString
)

type variable struct {
	id   string
	kind kind
}

type change struct {
	v   *variable
	val any
}

// Writer is an hdl.Tracer that dumps every settled change in VCD format.
//
// Changes made in several delta cycles of the same time step collapse into
// the last value, since VCD has no notion of deltas.
type Writer struct {
	w         *bufio.Writer
	scope     string
	timescale string
	date      time.Time

	vars    map[string]*variable
	now     uint64
	begun   bool
	closed  bool
	err     error
	changes []change
	slot    map[*variable]int
}

// Option configures a Writer.
type Option func(*Writer)

// WithScope sets the module scope the variables are declared in.
func WithScope(scope string) Option {
	return func(w *Writer) { w.scope = scope }
}

// WithTimescale sets the $timescale declaration.
func WithTimescale(ts string) Option {
	return func(w *Writer) { w.timescale = ts }
}

// WithDate sets the $date header. The header is omitted for a zero time.
func WithDate(t time.Time) Option {
	return func(w *Writer) { w.date = t }
}

// NewWriter creates a Writer on top of out.
func NewWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		w:         bufio.NewWriter(out),
		scope:     "top",
		timescale: "1ns",
		vars:      make(map[string]*variable),
		slot:      make(map[*variable]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Err returns the first write error, if any.
func (w *Writer) Err() error { return w.err }

// Begin writes the header, declarations and initial values. It implements
// hdl.Tracer.
func (w *Writer) Begin(now uint64, signals []hdl.Watched) error {
	if w.closed {
		return ErrClosed
	}
	if w.begun {
		return errors.New("vcd: already started")
	}
	w.begun = true
	w.now = now

	if !w.date.IsZero() {
		w.printf("$date %s $end\n", w.date.Format(time.RFC1123))
	}
	w.printf("$version blocksim $end\n")
	w.printf("$timescale %s $end\n", w.timescale)
	w.printf("$scope module %s $end\n", w.scope)
	for i, sig := range signals {
		if _, dup := w.vars[sig.Name()]; dup {
			return errors.Errorf("vcd: duplicate signal name %q", sig.Name())
		}
		v := &variable{id: identifier(i), kind: kindOf(sig.Current())}
		w.vars[sig.Name()] = v
		switch v.kind {
		case kindWire:
			w.printf("$var wire 1 %s %s $end\n", v.id, sig.Name())
		case kindInteger:
			w.printf("$var integer 64 %s %s $end\n", v.id, sig.Name())
		default:
			w.printf("$var string 1 %s %s $end\n", v.id, sig.Name())
		}
	}
	w.printf("$upscope $end\n")
	w.printf("$enddefinitions $end\n")

	w.printf("#%d\n$dumpvars\n", now)
	for _, sig := range signals {
		w.value(w.vars[sig.Name()], sig.Current())
	}
	w.printf("$end\n")

	return w.err
}

// Change records a settled value. It implements hdl.Tracer.
func (w *Writer) Change(now uint64, sig hdl.Watched) {
	if w.closed || !w.begun {
		return
	}
	v, ok := w.vars[sig.Name()]
	if !ok {
		return
	}
	if now != w.now {
		w.flush()
		w.now = now
	}

	if i, seen := w.slot[v]; seen {
		w.changes[i].val = sig.Current()
		return
	}
	w.slot[v] = len(w.changes)
	w.changes = append(w.changes, change{v: v, val: sig.Current()})
}

// Close flushes buffered changes. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.flush()
	w.closed = true
	if err := w.w.Flush(); err != nil && w.err == nil {
		w.err = errors.Wrap(err, "vcd: flush")
	}
	return w.err
}

func (w *Writer) flush() {
	if len(w.changes) == 0 {
		return
	}
	w.printf("#%d\n", w.now)
	for _, c := range w.changes {
		w.value(c.v, c.val)
		delete(w.slot, c.v)
	}
	w.changes = w.changes[:0]
}

func (w *Writer) value(v *variable, val any) {
	switch v.kind {
	case kindWire:
		if b, _ := val.(bool); b {
			w.printf("1%s\n", v.id)
		} else {
			w.printf("0%s\n", v.id)
		}
	case kindInteger:
		n, _ := asInt(val)
		w.printf("b%s %s\n", strconv.FormatUint(uint64(n), 2), v.id)
	default:
		w.printf("s%s %s\n", escape(fmt.Sprint(val)), v.id)
	}
}

func (w *Writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	if _, err := fmt.Fprintf(w.w, format, args...); err != nil {
		w.err = errors.Wrap(err, "vcd: write")
	}
}

func kindOf(val any) kind {
	if _, ok := val.(bool); ok {
		return kindWire
	}
	if _, ok := asInt(val); ok {
		return kindInteger
	}
	return kindString
}

func asInt(val any) (int64, bool) {
	switch n := val.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// identifier maps an index to a short VCD identifier made of the printable
// characters '!' through '~'.
func identifier(i int) string {
	const base = '~' - '!' + 1
	var buf []byte
	for {
		buf = append(buf, byte('!'+i%base))
		i = i/base - 1
		if i < 0 {
			break
		}
	}
	return string(buf)
}

func escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c > '~' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}
