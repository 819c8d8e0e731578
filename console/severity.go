package console

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Severity is a bit set of log levels a subscriber wants to see.
type Severity uint32

const (
	SeverityDebug Severity = 1 << iota
	SeverityInfo
	SeverityWarn
	SeverityError

	// AllSeverities matches every level, including ones added later.
	AllSeverities = ^Severity(0)
)

var severityNames = []struct {
	sev  Severity
	name string
}{
	{SeverityDebug, "debug"},
	{SeverityInfo, "info"},
	{SeverityWarn, "warn"},
	{SeverityError, "error"},
}

// String lists the set levels, e.g. "info,warn".
func (s Severity) String() string {
	switch s {
	case 0:
		return "none"
	case AllSeverities:
		return "all"
	}
	var parts []string
	rest := s
	for _, n := range severityNames {
		if s&n.sev != 0 {
			parts = append(parts, n.name)
			rest &^= n.sev
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, ",")
}

// ParseSeverity accepts a number ("3", "0xf"), "all", "none" or a comma
// separated list of level names ("warn,error").
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return 0, fmt.Errorf("empty severity mask")
	case "all", "*":
		return AllSeverities, nil
	case "none":
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return Severity(n), nil
	}

	var mask Severity
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range severityNames {
			if part == n.name || (part == "warning" && n.sev == SeverityWarn) {
				mask |= n.sev
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown severity %q (want debug, info, warn, error, all or a number)", part)
		}
	}
	return mask, nil
}

// severityOf maps a logrus level onto a console severity.
func severityOf(l log.Level) Severity {
	switch l {
	case log.TraceLevel, log.DebugLevel:
		return SeverityDebug
	case log.InfoLevel:
		return SeverityInfo
	case log.WarnLevel:
		return SeverityWarn
	default:
		return SeverityError
	}
}
