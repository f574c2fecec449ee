package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a commit/tag author or committer line: name, email, integer
// unix timestamp and a "+-HHMM" timezone offset.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Validate enforces §3: no '<', '>' or newline in Name.
func (s Signature) Validate() error {
	if strings.ContainsAny(s.Name, "<>\n") {
		return &ErrInvalidSignature{Reason: fmt.Sprintf("name %q contains '<', '>' or newline", s.Name)}
	}
	if strings.ContainsAny(s.Email, "<>\n") {
		return &ErrInvalidSignature{Reason: fmt.Sprintf("email %q contains '<', '>' or newline", s.Email)}
	}
	return nil
}

// ErrInvalidSignature is a §7 Validation error for a malformed author or
// committer identity.
type ErrInvalidSignature struct {
	Reason string
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("object: invalid signature: %s", e.Reason)
}

// Encode renders "<name> <<email>> <ts> <tz>".
func (s Signature) Encode() string {
	_, offset := s.When.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hh := offset / 3600
	mm := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", s.Name, s.Email, s.When.Unix(), sign, hh, mm)
}

// ParseSignature decodes a line previously produced by Encode.
func ParseSignature(line string) (Signature, error) {
	open := strings.LastIndexByte(line, '<')
	closeIdx := strings.LastIndexByte(line, '>')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return Signature{}, &ErrInvalidSignature{Reason: fmt.Sprintf("malformed signature %q", line)}
	}
	name := strings.TrimSpace(line[:open])
	email := line[open+1 : closeIdx]
	rest := strings.TrimSpace(line[closeIdx+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Signature{}, &ErrInvalidSignature{Reason: fmt.Sprintf("malformed timestamp %q", rest)}
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, &ErrInvalidSignature{Reason: fmt.Sprintf("malformed timestamp %q", fields[0])}
	}
	tz := fields[1]
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return Signature{}, &ErrInvalidSignature{Reason: fmt.Sprintf("malformed timezone %q", tz)}
	}
	hh, err1 := strconv.Atoi(tz[1:3])
	mm, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return Signature{}, &ErrInvalidSignature{Reason: fmt.Sprintf("malformed timezone %q", tz)}
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	when := time.Unix(ts, 0).In(time.FixedZone("", offset))
	return Signature{Name: name, Email: email, When: when}, nil
}
