package object

import "strings"

// CleanupMode selects how CleanupMessage normalizes a raw commit message
// before it is stored, mirroring Git's --cleanup modes (§4.2).
type CleanupMode int

const (
	CleanupDefault CleanupMode = iota
	CleanupVerbatim
	CleanupWhitespace
	CleanupStrip
	CleanupScissors
)

const scissorsMarker = " ------------------------ >8 ------------------------"

// CleanupMessage applies mode to raw and returns the normalized message.
func CleanupMessage(raw string, mode CleanupMode) string {
	switch mode {
	case CleanupVerbatim:
		return raw
	case CleanupWhitespace:
		return stripWhitespace(raw)
	case CleanupStrip:
		return collapseBlanks(stripComments(stripWhitespace(raw)))
	case CleanupScissors:
		return collapseBlanks(stripComments(stripWhitespace(truncateAtScissors(raw))))
	default:
		return collapseBlanks(stripWhitespace(raw))
	}
}

// truncateAtScissors drops everything from a "# ---- >8 ----" line onward.
func truncateAtScissors(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "#"+scissorsMarker) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return raw
}

// stripComments removes lines beginning with '#'.
func stripComments(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "#") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// stripWhitespace trims trailing whitespace from every line and leading
// and trailing blank lines from the whole message.
func stripWhitespace(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// collapseBlanks reduces any run of consecutive blank lines to a single
// blank line.
func collapseBlanks(raw string) string {
	lines := strings.Split(raw, "\n")
	var out []string
	prevBlank := false
	for _, l := range lines {
		blank := l == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, l)
		prevBlank = blank
	}
	return strings.Join(out, "\n")
}
