package converge

import (
	"sort"
	"strings"
)

// Fields is a parsed gateway response: the flat key=value pairs Converge
// returns in ASCII result format. There is no schema validation; callers
// read the fields they expect and treat missing ones as empty.
type Fields map[string]string

// ParseResponse decodes the gateway's newline-delimited key=value response
// text. Values may themselves contain '=' characters, so only the first '='
// on a line separates key from value. Keys and values are trimmed.
func ParseResponse(body string) Fields {
	fields := make(Fields)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(parts[1])
	}
	return fields
}

// Get returns the value for key, or "" when absent.
func (f Fields) Get(key string) string {
	return f[key]
}

// Approved reports whether the gateway approved the transaction.
// Converge signals success with the literal string "0". The comparison is
// intentionally a string match, not a numeric one.
func (f Fields) Approved() bool {
	return f["ssl_result"] == "0"
}

// Encode re-serializes the fields as key=value lines (sorted for stable
// output). Used for audit-log capture and round-trip testing.
func (f Fields) Encode() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f[k])
		b.WriteByte('\n')
	}
	return b.String()
}
