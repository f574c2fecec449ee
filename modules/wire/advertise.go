package wire

import (
	"fmt"
	"io"
	"sort"
)

// RefAdvertisement is one advertised "<sha> <refname>" pair.
type RefAdvertisement struct {
	SHA string
	Ref string
}

// WriteRefAdvertisement writes the initial ref-advertisement §4.9
// describes: refs sorted by name, capabilities attached (NUL-separated)
// to the first line, an optional "# service=..." preamble for the dumb
// HTTP transport, and a trailing flush-pkt.
func WriteRefAdvertisement(w io.Writer, service string, refs []RefAdvertisement, caps Capabilities) error {
	sorted := append([]RefAdvertisement(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ref < sorted[j].Ref })

	if service != "" {
		if err := WritePacket(w, []byte(fmt.Sprintf("# service=%s\n", service))); err != nil {
			return err
		}
		if err := WriteFlush(w); err != nil {
			return err
		}
	}

	if len(sorted) == 0 {
		if err := WritePacket(w, []byte(fmt.Sprintf("%s capabilities^{}\x00%s\n", ZeroOID, caps.String()))); err != nil {
			return err
		}
		return WriteFlush(w)
	}

	for i, r := range sorted {
		line := fmt.Sprintf("%s %s", r.SHA, r.Ref)
		if i == 0 {
			line += "\x00" + caps.String()
		}
		line += "\n"
		if err := WritePacket(w, []byte(line)); err != nil {
			return err
		}
	}
	return WriteFlush(w)
}

// ZeroOID is the all-zero SHA-1 advertised when a repository has no refs.
const ZeroOID = "0000000000000000000000000000000000000000"

// ReadRefAdvertisement parses a ref-advertisement stream (without the
// optional dumb-HTTP "# service=" preamble, which callers strip first)
// into its refs and the capabilities carried on the first line.
func ReadRefAdvertisement(r io.Reader) ([]RefAdvertisement, Capabilities, error) {
	s := NewScanner(r)
	var refs []RefAdvertisement
	var caps Capabilities
	first := true
	for s.Scan() {
		if s.Flush() {
			break
		}
		line := string(s.Bytes())
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		sha, ref, c := ParseRefLine(line)
		if first {
			caps = c
			first = false
		}
		if ref == "capabilities^{}" {
			continue
		}
		refs = append(refs, RefAdvertisement{SHA: sha, Ref: ref})
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	return refs, caps, nil
}
