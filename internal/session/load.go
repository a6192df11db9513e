package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"

	"bbtrace/internal/modmap"
)

// Load reads a session file. Files ending in .mp are msgpack, everything
// else is TOML. A maps file named by the session is resolved relative to the
// session file and its modules are appended to the module list.
func Load(path string) (*Session, error) {
	var (
		s   *Session
		err error
	)
	if strings.HasSuffix(path, ".mp") {
		s, err = loadMsgpack(path)
	} else {
		s, err = loadTOML(path)
	}
	if err != nil {
		return nil, err
	}

	if s.Maps != "" {
		mapsPath := s.Maps
		if !filepath.IsAbs(mapsPath) {
			mapsPath = filepath.Join(filepath.Dir(path), mapsPath)
		}
		if err := s.loadMaps(mapsPath); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := s.Normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func loadTOML(path string) (*Session, error) {
	var s Session
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return &s, nil
}

func loadMsgpack(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a msgpack-encoded session without normalizing it.
func Decode(r io.Reader) (*Session, error) {
	var s Session
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Encode writes s as msgpack.
func Encode(w io.Writer, s *Session) error {
	if err := msgpack.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return nil
}

func (s *Session) loadMaps(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open maps: %w", err)
	}
	defer f.Close()
	mods, err := modmap.ParseProcMaps(f)
	if err != nil {
		return err
	}
	for _, m := range mods {
		s.Modules = append(s.Modules, Module{
			Name: m.Name,
			File: m.FileName,
			Base: uint64(m.Base),
			Size: m.Size,
		})
	}
	// Already merged; clear so a re-encoded session does not load it twice.
	s.Maps = ""
	return nil
}
