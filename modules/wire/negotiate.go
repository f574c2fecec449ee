package wire

import (
	"fmt"
	"io"
	"strings"
)

// UploadPackRequest is a parsed upload-pack negotiation: the set of
// wants, haves, and any "done"/"shallow"/"deepen"/"filter" directives
// upload-pack must honor, plus the capability tokens the client
// advertised on its first "want" line.
type UploadPackRequest struct {
	Wants       []string
	Haves       []string
	Shallow     []string
	Deepen      int
	DeepenSince string
	DeepenNot   []string
	Filter      string
	Done        bool
	Caps        Capabilities
}

// ReadUploadPackRequest parses the want/have negotiation lines a client
// sends, returning as soon as it reads "done" (or at the end of the
// stream if no "done" arrives). Flush-pkts between sections are skipped
// and do not end the request. Capability
// tokens trailing the first "want" line (NUL-separated, the same
// convention ReadReceivePackRequest uses for its command line) are
// captured into Caps rather than rejected as part of the SHA.
func ReadUploadPackRequest(r io.Reader) (*UploadPackRequest, error) {
	s := NewScanner(r)
	req := &UploadPackRequest{}
	first := true
	for s.Scan() {
		if s.Flush() {
			continue
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		if first && strings.HasPrefix(line, "want ") {
			if i := strings.IndexByte(line, 0); i >= 0 {
				req.Caps = NewCapabilities(strings.Fields(line[i+1:])...)
				line = line[:i]
			}
		}
		if strings.HasPrefix(line, "want ") {
			first = false
		}
		switch {
		case strings.HasPrefix(line, "want "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("wire: malformed want line %q", line)
			}
			req.Wants = append(req.Wants, fields[1])
		case strings.HasPrefix(line, "have "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("wire: malformed have line %q", line)
			}
			req.Haves = append(req.Haves, fields[1])
		case strings.HasPrefix(line, "shallow "):
			req.Shallow = append(req.Shallow, strings.TrimPrefix(line, "shallow "))
		case strings.HasPrefix(line, "deepen "):
			var n int
			fmt.Sscanf(strings.TrimPrefix(line, "deepen "), "%d", &n)
			req.Deepen = n
		case strings.HasPrefix(line, "deepen-since "):
			req.DeepenSince = strings.TrimPrefix(line, "deepen-since ")
		case strings.HasPrefix(line, "deepen-not "):
			req.DeepenNot = append(req.DeepenNot, strings.TrimPrefix(line, "deepen-not "))
		case strings.HasPrefix(line, "filter "):
			req.Filter = strings.TrimPrefix(line, "filter ")
		case line == "done":
			req.Done = true
			return req, s.Err()
		default:
			return nil, fmt.Errorf("wire: unrecognized negotiation line %q", line)
		}
	}
	return req, s.Err()
}

// AckStatus is the result Git attaches to a negotiation "ACK"/"NAK".
type AckStatus int

const (
	AckNone AckStatus = iota
	AckContinue
	AckCommon
	AckReady
	NakStatus
)

// WriteAck writes an ACK line for sha with the given status, or a NAK if
// status is NakStatus (sha is ignored in that case).
func WriteAck(w io.Writer, sha string, status AckStatus) error {
	switch status {
	case NakStatus:
		return WritePacket(w, []byte("NAK\n"))
	case AckContinue:
		return WritePacket(w, []byte(fmt.Sprintf("ACK %s continue\n", sha)))
	case AckCommon:
		return WritePacket(w, []byte(fmt.Sprintf("ACK %s common\n", sha)))
	case AckReady:
		return WritePacket(w, []byte(fmt.Sprintf("ACK %s ready\n", sha)))
	default:
		return WritePacket(w, []byte(fmt.Sprintf("ACK %s\n", sha)))
	}
}

// RefUpdateCommand is one receive-pack ref update: old id, new id, ref
// name. A Create has OldSHA == ZeroOID; a Delete has NewSHA == ZeroOID.
type RefUpdateCommand struct {
	OldSHA string
	NewSHA string
	Ref    string
}

// ReceivePackRequest is the parsed command list a client sends to
// receive-pack ahead of the packfile itself.
type ReceivePackRequest struct {
	Commands []RefUpdateCommand
	Caps     Capabilities
}

// ReadReceivePackRequest parses the ref update commands preceding the
// packfile in a receive-pack request.
func ReadReceivePackRequest(r io.Reader) (*ReceivePackRequest, error) {
	s := NewScanner(r)
	req := &ReceivePackRequest{}
	first := true
	for s.Scan() {
		if s.Flush() {
			break
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		if first {
			if i := strings.IndexByte(line, 0); i >= 0 {
				req.Caps = NewCapabilities(strings.Fields(line[i+1:])...)
				line = line[:i]
			}
			first = false
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("wire: malformed ref update command %q", line)
		}
		req.Commands = append(req.Commands, RefUpdateCommand{OldSHA: fields[0], NewSHA: fields[1], Ref: fields[2]})
	}
	return req, s.Err()
}

// WriteRefUpdateCommand renders one receive-pack command line.
func WriteRefUpdateCommand(w io.Writer, cmd RefUpdateCommand, caps Capabilities) error {
	line := fmt.Sprintf("%s %s %s", cmd.OldSHA, cmd.NewSHA, cmd.Ref)
	if caps != nil {
		line += "\x00" + caps.String()
	}
	line += "\n"
	return WritePacket(w, []byte(line))
}
