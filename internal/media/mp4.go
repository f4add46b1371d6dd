package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotMP4 is returned when a file lacks the boxes every MP4 must carry.
var ErrNotMP4 = errors.New("not a valid mp4")

var containerBoxes = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"dinf": true,
	"stbl": true,
	"mvex": true,
	"edts": true,
}

// Atom is an MP4 box.
type Atom struct {
	Offset   int64
	Size     int64
	Type     string
	Children []Atom
}

func (a Atom) String() string {
	return fmt.Sprintf("[%s] @ %d (size %d)", a.Type, a.Offset, a.Size)
}

// ProbeMP4 walks the box tree of r without reading payloads.
func ProbeMP4(r io.ReadSeeker) ([]Atom, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	return walkBoxes(r, 0, end, 0)
}

func walkBoxes(r io.ReadSeeker, start, end int64, depth int) ([]Atom, error) {
	var atoms []Atom
	var hdr [16]byte
	for off := start; off+8 <= end; {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, hdr[:8]); err != nil {
			return nil, fmt.Errorf("box header at %d: %w", off, err)
		}
		size := int64(binary.BigEndian.Uint32(hdr[:4]))
		typ := string(hdr[4:8])
		headerLen := int64(8)
		switch size {
		case 0:
			size = end - off
		case 1:
			if _, err := io.ReadFull(r, hdr[8:16]); err != nil {
				return nil, fmt.Errorf("extended size at %d: %w", off, err)
			}
			size = int64(binary.BigEndian.Uint64(hdr[8:16]))
			headerLen = 16
		}
		if size < headerLen || off+size > end {
			return nil, fmt.Errorf("box %q at %d has bad size %d: %w", typ, off, size, ErrNotMP4)
		}
		a := Atom{Offset: off, Size: size, Type: typ}
		if containerBoxes[typ] && depth < 8 {
			kids, err := walkBoxes(r, off+headerLen, off+size, depth+1)
			if err != nil {
				return nil, err
			}
			a.Children = kids
		}
		atoms = append(atoms, a)
		off += size
	}
	return atoms, nil
}

// VerifyMP4 checks that the file at path has top level ftyp and moov boxes.
func VerifyMP4(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	atoms, err := ProbeMP4(f)
	if err != nil {
		return err
	}
	return requireBoxes(atoms, "ftyp", "moov")
}

func requireBoxes(atoms []Atom, types ...string) error {
	seen := map[string]bool{}
	for _, a := range atoms {
		seen[a.Type] = true
	}
	for _, t := range types {
		if !seen[t] {
			return fmt.Errorf("missing %s box: %w", t, ErrNotMP4)
		}
	}
	return nil
}
