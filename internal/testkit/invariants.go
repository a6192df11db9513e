// Package testkit checks structural invariants of trace logs in tests.
package testkit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bbtrace/internal/trace"
)

// LogRecord is one parsed text record.
type LogRecord struct {
	Line   int // 1-based line of the record's first line
	Thread uint64
	Module string // "" for records outside any module
	Offset uint64 // module offset, or the raw address without a module
	Body   []string
}

var (
	fullHeader = regexp.MustCompile(`^\[time=(\d+) thread=(\d+)\] (.+) \+ 0x([0-9a-f]+)$`)
	annotated  = regexp.MustCompile(`^(.+) \+ 0x([0-9a-f]+)$`)
	terse      = regexp.MustCompile(`^0x([0-9a-f]+)$`)
	noModule   = regexp.MustCompile(`^no module 0x([0-9a-f]+)$`)
)

const noModuleName = "no module"

// CheckLog parses a text trace log written at verbosity v and checks:
// 1) the log is empty or ends with a newline
// 2) every line belongs to a well-formed record
// 3) in full mode only records with a module carry a body
func CheckLog(data string, v trace.Verbosity) ([]LogRecord, error) {
	if data == "" {
		return nil, nil
	}
	if !strings.HasSuffix(data, "\n") {
		return nil, fmt.Errorf("log does not end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")

	var recs []LogRecord
	for i, line := range lines {
		n := i + 1
		if v == trace.Full {
			if m := fullHeader.FindStringSubmatch(line); m != nil {
				thread, _ := strconv.ParseUint(m[2], 10, 64)
				off, _ := strconv.ParseUint(m[4], 16, 64)
				rec := LogRecord{Line: n, Thread: thread, Offset: off}
				if m[3] != noModuleName {
					rec.Module = m[3]
				}
				recs = append(recs, rec)
				continue
			}
			if len(recs) == 0 {
				return nil, fmt.Errorf("line %d: body line before the first header: %q", n, line)
			}
			last := &recs[len(recs)-1]
			if last.Module == "" {
				return nil, fmt.Errorf("line %d: body on a record without a module", n)
			}
			last.Body = append(last.Body, line)
			continue
		}

		if m := noModule.FindStringSubmatch(line); m != nil {
			off, _ := strconv.ParseUint(m[1], 16, 64)
			recs = append(recs, LogRecord{Line: n, Offset: off})
			continue
		}
		re := terse
		if v == trace.Annotated {
			re = annotated
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: malformed %s record: %q", n, v, line)
		}
		rec := LogRecord{Line: n}
		rec.Offset, _ = strconv.ParseUint(m[len(m)-1], 16, 64)
		if v == trace.Annotated {
			rec.Module = m[1]
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
