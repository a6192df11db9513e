package testkit

import (
	"testing"

	"bbtrace/internal/trace"
)

func TestCheckLog_Full(t *testing.T) {
	log := "[time=1 thread=7] app + 0x10\nmov eax, 0x1\nret\n[time=2 thread=8] no module + 0x401000\n"
	recs, err := CheckLog(log, trace.Full)
	if err != nil {
		t.Fatalf("CheckLog: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Thread != 7 || recs[0].Module != "app" || recs[0].Offset != 0x10 || len(recs[0].Body) != 2 {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Module != "" || recs[1].Offset != 0x401000 || recs[1].Line != 4 {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
}

func TestCheckLog_Violations(t *testing.T) {
	cases := []struct {
		name string
		log  string
		v    trace.Verbosity
	}{
		{"unterminated", "0x10", trace.Terse},
		{"terse with module", "app + 0x10\n", trace.Terse},
		{"annotated bare offset", "0x10\n", trace.Annotated},
		{"body before header", "ret\n", trace.Full},
		{"body without module", "[time=1 thread=1] no module + 0x10\nret\n", trace.Full},
	}
	for _, tc := range cases {
		if _, err := CheckLog(tc.log, tc.v); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestCheckLog_Annotated(t *testing.T) {
	recs, err := CheckLog("libc.so.6 + 0x2a\nno module 0x1000\n", trace.Annotated)
	if err != nil {
		t.Fatalf("CheckLog: %v", err)
	}
	if recs[0].Module != "libc.so.6" || recs[0].Offset != 0x2a || recs[1].Module != "" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}
