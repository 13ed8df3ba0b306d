// Package nrrd reads the text header of NRRD files (including 3D Slicer
// .seg.nrrd segmentations) without touching the voxel data.
package nrrd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/viant/afs"
)

const magicPrefix = "NRRD000"

// maxHeaderBytes bounds how much is read before giving up on finding the
// blank line that ends an attached header
const maxHeaderBytes = 4 << 20

// ErrNotNRRD is returned when the magic line is missing
var ErrNotNRRD = errors.New("not a NRRD file")

// Header holds the magic version and every field and key/value pair.
// Fields ("key: value") and key/values ("key:=value") share one key space,
// the way segmentation metadata consumers expect them.
type Header struct {
	Version string
	Values  map[string]string
}

// ReadHeader parses a header from r, stopping at the first blank line
func ReadHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(io.LimitReader(r, maxHeaderBytes))

	magic, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && magic != "") {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	magic = strings.TrimRight(magic, "\r\n")
	if !strings.HasPrefix(magic, magicPrefix) {
		return nil, ErrNotNRRD
	}

	header := &Header{Version: magic, Values: map[string]string{}}
	for lineNo := 2; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			// blank line ends an attached header, EOF ends a detached one
			return header, nil
		}
		if strings.IndexByte(trimmed, 0) >= 0 {
			return nil, fmt.Errorf("line %d: binary data before end of header", lineNo)
		}
		if err := header.parseLine(trimmed); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if errors.Is(err, io.EOF) {
			return header, nil
		}
	}
}

func (h *Header) parseLine(line string) error {
	if strings.HasPrefix(line, "#") {
		return nil
	}
	if key, value, ok := strings.Cut(line, ":="); ok {
		h.Values[unescape(key)] = unescape(value)
		return nil
	}
	if key, value, ok := strings.Cut(line, ": "); ok {
		h.Values[strings.TrimSpace(key)] = strings.TrimSpace(value)
		return nil
	}
	return fmt.Errorf("malformed header line %q", line)
}

// unescape resolves the "\\" and "\n" escapes allowed in key/value pairs
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Reader reads NRRD headers through an afs storage service
type Reader struct {
	fs afs.Service
}

// NewReader creates a header reader; a nil service uses afs.New()
func NewReader(fs afs.Service) *Reader {
	if fs == nil {
		fs = afs.New()
	}
	return &Reader{fs: fs}
}

// ReadMetadata opens the file at URL and returns its header key space
func (r *Reader) ReadMetadata(ctx context.Context, URL string) (map[string]string, error) {
	rc, err := r.fs.OpenURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", URL, err)
	}
	defer rc.Close()

	header, err := ReadHeader(rc)
	if err != nil {
		return nil, fmt.Errorf("read NRRD header %s: %w", URL, err)
	}
	return header.Values, nil
}
