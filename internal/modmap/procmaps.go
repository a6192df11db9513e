package modmap

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"bbtrace/internal/host"
)

// ParseProcMaps reads a Linux /proc/<pid>/maps listing and returns one
// module per mapped file. Contiguous mappings of the same file are merged;
// anonymous and pseudo mappings ([heap], [stack], ...) are skipped.
func ParseProcMaps(r io.Reader) ([]host.Module, error) {
	var mods []host.Module
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		path := strings.Join(fields[5:], " ")
		if !strings.HasPrefix(path, "/") {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("maps line %d: bad range %q", line, fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		if end <= start {
			return nil, fmt.Errorf("maps line %d: empty range %q", line, fields[0])
		}

		if n := len(mods); n > 0 {
			last := &mods[n-1]
			if last.FileName == path && uint64(last.Base)+last.Size == start {
				last.Size = end - uint64(last.Base)
				continue
			}
		}
		mods = append(mods, host.Module{
			Name:     filepath.Base(path),
			FileName: path,
			Base:     host.Addr(start),
			Size:     end - start,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read maps: %w", err)
	}
	return mods, nil
}
