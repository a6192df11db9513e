package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Format represents the output format for records.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // human-readable text
	FormatNDJSON               // newline-delimited JSON
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatText:
		return "text"
	case FormatNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	default:
		return FormatAuto, fmt.Errorf("invalid format: %q (expected: auto|text|ndjson)", s)
	}
}

// formatForPath resolves FormatAuto from a file extension.
func formatForPath(f Format, path string) Format {
	if f != FormatAuto {
		return f
	}
	if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".jsonl") {
		return FormatNDJSON
	}
	return FormatText
}

// FormatRecord renders a record according to verbosity and format.
func FormatRecord(rec *Record, v Verbosity, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(rec, v)
	default:
		return formatText(rec, v)
	}
}

// formatText renders the line-oriented log format:
//
//	terse      0x10
//	annotated  libc.so + 0x10
//	full       [time=1700000000000000 thread=7] libc.so + 0x10
//	           <disassembly lines>
//
// Records without a module render as "no module 0x401000", or with the
// full header "no module + 0x401000" and no body.
func formatText(rec *Record, v Verbosity) []byte {
	var sb strings.Builder
	hexOff := "0x" + strconv.FormatUint(rec.Offset, 16)

	switch {
	case v == Full:
		sb.WriteString("[time=")
		sb.WriteString(strconv.FormatInt(rec.Time.UnixMicro(), 10))
		sb.WriteString(" thread=")
		sb.WriteString(strconv.FormatUint(rec.Thread, 10))
		sb.WriteString("] ")
		if rec.HasModule {
			sb.WriteString(rec.Module)
		} else {
			sb.WriteString("no module")
		}
		sb.WriteString(" + ")
		sb.WriteString(hexOff)
		sb.WriteString("\n")
		if rec.HasModule {
			sb.WriteString(rec.Body)
		}
	case !rec.HasModule:
		sb.WriteString("no module ")
		sb.WriteString(rec.Addr.String())
		sb.WriteString("\n")
	case v == Annotated:
		sb.WriteString(rec.Module)
		sb.WriteString(" + ")
		sb.WriteString(hexOff)
		sb.WriteString("\n")
	default:
		sb.WriteString(hexOff)
		sb.WriteString("\n")
	}

	return []byte(sb.String())
}

// formatNDJSON renders one JSON object per record.
func formatNDJSON(rec *Record, v Verbosity) []byte {
	type jsonRecord struct {
		Time   int64  `json:"time_us,omitempty"`
		Seq    uint64 `json:"seq"`
		Thread uint64 `json:"thread,omitempty"`
		Addr   string `json:"addr"`
		Module string `json:"module,omitempty"`
		Offset string `json:"offset"`
		Body   string `json:"body,omitempty"`
	}

	j := jsonRecord{
		Seq:    rec.Seq,
		Addr:   rec.Addr.String(),
		Offset: "0x" + strconv.FormatUint(rec.Offset, 16),
	}
	if rec.HasModule && v >= Annotated {
		j.Module = rec.Module
	}
	if v == Full {
		j.Time = rec.Time.UnixMicro()
		j.Thread = rec.Thread
		j.Body = rec.Body
	}

	data, _ := json.Marshal(j)
	data = append(data, '\n')
	return data
}
