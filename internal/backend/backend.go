// Package backend decides which archive format the process uses.
// The decision is made once from a capability probe and then passed
// around as a plain Backend value.
package backend

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dsnet/compress/bzip2"
)

// Backend is the container+compression format in use.
type Backend string

const (
	// Zip is a plain ZIP container.
	Zip Backend = "zip"
	// TarBz2 is a TAR container filtered through bzip2.
	TarBz2 Backend = "tar.bz2"
)

// Auto asks Resolve to run the selector instead of forcing a backend.
const Auto = "auto"

// String returns the config spelling of the backend.
func (b Backend) String() string {
	return string(b)
}

// Extension returns the conventional file extension for the backend.
func (b Backend) Extension() string {
	if b == TarBz2 {
		return ".tar.bz2"
	}
	return ".zip"
}

// Probe reports whether a bz2-compatible filter is usable.
type Probe func() bool

// Select returns TarBz2 when the probe finds a bz2 filter and Zip otherwise.
// A nil probe counts as "no filter". Select never fails.
func Select(probe Probe) Backend {
	if probe != nil && safeProbe(probe) {
		return TarBz2
	}
	return Zip
}

// safeProbe treats a panicking probe as an unavailable filter.
func safeProbe(probe Probe) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return probe()
}

var (
	defaultOnce    sync.Once
	defaultBackend Backend
)

// Default runs Select with Bz2Available exactly once per process and
// returns the cached result on every later call.
func Default() Backend {
	defaultOnce.Do(func() {
		defaultBackend = Select(Bz2Available)
	})
	return defaultBackend
}

// probePayload is compressed and decompressed by Bz2Available.
var probePayload = []byte("projpack bz2 probe")

// Bz2Available round-trips a small payload through the bzip2 filter.
func Bz2Available() bool {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	if err != nil {
		return false
	}
	if _, err := w.Write(probePayload); err != nil {
		return false
	}
	if err := w.Close(); err != nil {
		return false
	}

	r, err := bzip2.NewReader(&buf, nil)
	if err != nil {
		return false
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return false
	}
	return bytes.Equal(out, probePayload)
}

// Parse converts a config value into a Backend.
// "zip" and "tar.bz2" (also "tarbz2", "bz2") are accepted, case-insensitively.
func Parse(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zip":
		return Zip, nil
	case "tar.bz2", "tarbz2", "bz2":
		return TarBz2, nil
	default:
		return "", fmt.Errorf("unknown backend: %q", s)
	}
}

// Resolve turns a configured mode into a Backend. An empty mode or "auto"
// runs Select with the given probe; anything else must parse.
func Resolve(mode string, probe Probe) (Backend, error) {
	if m := strings.ToLower(strings.TrimSpace(mode)); m == "" || m == Auto {
		return Select(probe), nil
	}
	return Parse(mode)
}
