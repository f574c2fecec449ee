package wire

import (
	"errors"
	"fmt"
	"io"
)

// Side-band channel identifiers, per §4.9: the packfile data itself,
// progress messages meant for display, and fatal error text.
const (
	SidebandData     byte = 1
	SidebandProgress byte = 2
	SidebandError    byte = 3
)

// sidebandOverhead is the one byte reserved for the channel id within
// each MaxPayload-sized pkt-line.
const sidebandOverhead = 1

// SidebandWriter multiplexes pack data and progress/error messages onto
// a single pkt-line stream, splitting large channel-1 writes into
// MaxPayload-sized chunks.
type SidebandWriter struct {
	w       io.Writer
	channel byte
}

// NewSidebandWriter returns a writer that frames everything written to
// it as side-band channel ch.
func NewSidebandWriter(w io.Writer, ch byte) *SidebandWriter {
	return &SidebandWriter{w: w, channel: ch}
}

func (sw *SidebandWriter) Write(p []byte) (int, error) {
	total := 0
	chunk := MaxPayload - sidebandOverhead
	for len(p) > 0 {
		n := len(p)
		if n > chunk {
			n = chunk
		}
		frame := make([]byte, 0, n+sidebandOverhead)
		frame = append(frame, sw.channel)
		frame = append(frame, p[:n]...)
		if err := WritePacket(sw.w, frame); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// ErrUnknownSidebandChannel is returned by SidebandDemux when a pkt-line
// carries a channel byte outside {1,2,3}.
var ErrUnknownSidebandChannel = errors.New("wire: unknown side-band channel")

// SidebandDemux reads a side-band-multiplexed stream from r, writing
// channel-1 bytes to data and channel-2 bytes to progress (channel-3
// payloads are returned as an error). It stops at the terminating
// flush-pkt.
func SidebandDemux(r io.Reader, data, progress io.Writer) error {
	s := NewScanner(r)
	for s.Scan() {
		if s.Flush() {
			return nil
		}
		b := s.Bytes()
		if len(b) == 0 {
			continue
		}
		switch b[0] {
		case SidebandData:
			if _, err := data.Write(b[1:]); err != nil {
				return err
			}
		case SidebandProgress:
			if progress != nil {
				if _, err := progress.Write(b[1:]); err != nil {
					return err
				}
			}
		case SidebandError:
			return fmt.Errorf("wire: remote error: %s", b[1:])
		default:
			return ErrUnknownSidebandChannel
		}
	}
	return s.Err()
}
