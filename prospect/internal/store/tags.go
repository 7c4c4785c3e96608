package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/huandu/go-sqlbuilder"
	"modernc.org/sqlite"
)

// TagsFunc is the SQL scalar function name bound to TagsContain.
const TagsFunc = "tags_contain"

var registerOnce sync.Once

// registerFunctions installs tags_contain for every connection opened by
// the sqlite driver in this process.
func registerFunctions() {
	registerOnce.Do(func() {
		err := sqlite.RegisterDeterministicScalarFunction(TagsFunc, 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				tag, _ := args[1].(string)
				if TagsContain(args[0], tag) {
					return int64(1), nil
				}
				return int64(0), nil
			})
		if err != nil {
			slog.Error("store: register tags_contain", "error", err)
		}
	})
}

// TagsContain reports whether the serialized tag collection raw contains
// tag. Absent or unparsable collections contain nothing.
func TagsContain(raw any, tag string) bool {
	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return false
	}
	if len(b) == 0 {
		return false
	}
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		slog.Warn("store: malformed tags ignored", "error", err)
		return false
	}
	return slices.Contains(tags, tag)
}

// NormalizeTags drops empty tags and duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// EncodeTags serializes tags as a JSON array. Empty sets encode as nil (NULL).
func EncodeTags(tags []string) *string {
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	s := string(b)
	return &s
}

// DecodeTags parses a stored tag collection. nil decodes to nil.
func DecodeTags(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(*raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// tagFilter returns the OR of tags_contain(tags, ?) over the requested tags,
// or "" when no tags were requested. A request made only of empty tags
// matches nothing, since stored sets never hold "".
func tagFilter(cond *sqlbuilder.Cond, tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return "0"
	}
	exprs := make([]string, len(tags))
	for i, t := range tags {
		exprs[i] = fmt.Sprintf("%s(tags, %s)", TagsFunc, cond.Var(t))
	}
	return cond.Or(exprs...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// keywordFilter matches keyword case-insensitively as a substring of title
// or content.
func keywordFilter(cond *sqlbuilder.Cond, keyword string) string {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
	return cond.Or(
		fmt.Sprintf(`LOWER(title) LIKE %s ESCAPE '\'`, cond.Var(pattern)),
		fmt.Sprintf(`LOWER(content) LIKE %s ESCAPE '\'`, cond.Var(pattern)),
	)
}
