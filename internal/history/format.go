package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/lexbrief/internal/model"
)

// QueryHeader prefixes line 0 of every history file
const QueryHeader = "# Query: "

// ErrMalformedEntry means a history file does not start with the query header
var ErrMalformedEntry = errors.New("malformed history entry")

var queryEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// EscapeQuery keeps a query on one line
func EscapeQuery(q string) string {
	return queryEscaper.Replace(q)
}

// UnescapeQuery reverses EscapeQuery. Unknown escapes are kept as written.
func UnescapeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
			continue
		}
		i++
	}
	return b.String()
}

// Encode renders the persisted layout: header line, blank line, body
func Encode(query, body string) []byte {
	return []byte(QueryHeader + EscapeQuery(query) + "\n\n" + body)
}

// Decode splits a history file into its query and body
func Decode(data []byte) (query, body string, err error) {
	s := string(data)
	if !strings.HasPrefix(s, QueryHeader) {
		return "", "", fmt.Errorf("%w: missing %q header", ErrMalformedEntry, strings.TrimSpace(QueryHeader))
	}

	header, rest, found := strings.Cut(s, "\n")
	query = UnescapeQuery(strings.TrimSuffix(strings.TrimPrefix(header, QueryHeader), "\r"))
	if !found {
		return query, "", nil
	}

	// Files written by hand may omit the blank separator line
	body = strings.TrimPrefix(rest, "\n")
	return query, body, nil
}

// SplitSummary rebuilds a SummaryResult from its rendered text
func SplitSummary(raw string) model.SummaryResult {
	closing := model.DefaultClosingPrompt
	switch {
	case raw == closing:
		return model.SummaryResult{ClosingPrompt: closing, Raw: raw}
	case strings.HasSuffix(raw, "\n\n"+closing):
		return model.SummaryResult{
			Body:          strings.TrimSuffix(raw, "\n\n"+closing),
			ClosingPrompt: closing,
			Raw:           raw,
		}
	default:
		return model.SummaryResult{Body: raw, Raw: raw}
	}
}
