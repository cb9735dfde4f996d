package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Luismorlan/msprsearch/model"
	Logger "github.com/Luismorlan/msprsearch/utils/log"
	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Normalizer coerces the loosely typed values of a source row into the
// canonical shapes the index expects. None of its methods fail: malformed
// input degrades to an empty or single element value and is logged against
// the owning post.
type Normalizer struct {
	log *logrus.Entry
}

func New(log *logrus.Entry) *Normalizer {
	if log == nil {
		log = Logger.Log
	}
	return &Normalizer{log: log.WithField("component", "normalizer")}
}

// StringList returns raw as a list of strings. Lists are kept, JSON array
// strings are decoded, comma separated strings are split and trimmed, and
// any other non empty scalar becomes a single element list.
func (n *Normalizer) StringList(owner string, raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if e == nil {
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out
	case datatypes.JSON:
		return n.stringListFromString(owner, string(v))
	case []byte:
		return n.stringListFromString(owner, string(v))
	case string:
		return n.stringListFromString(owner, v)
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (n *Normalizer) stringListFromString(owner string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	if looksLikeJSON(s) {
		var decoded interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			n.warn(owner, "list field is not valid JSON, keeping raw value", err)
			return []string{s}
		}
		switch d := decoded.(type) {
		case []interface{}:
			return n.StringList(owner, d)
		case map[string]interface{}:
			// an object carries no list semantics, keep the text as one value
			return []string{s}
		}
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	return []string{s}
}

// Comments returns raw as a list of comment objects. A JSON string is
// decoded first. Anything that is neither a list nor an object degrades to an
// empty list. Dates inside each comment are normalized like post dates.
func (n *Normalizer) Comments(owner string, raw interface{}) []map[string]interface{} {
	var decoded interface{}
	switch v := raw.(type) {
	case nil:
		return []map[string]interface{}{}
	case string:
		decoded = n.decodeCommentJSON(owner, v)
	case []byte:
		decoded = n.decodeCommentJSON(owner, string(v))
	case datatypes.JSON:
		decoded = n.decodeCommentJSON(owner, string(v))
	default:
		decoded = v
	}

	out := []map[string]interface{}{}
	switch d := decoded.(type) {
	case nil:
	case []map[string]interface{}:
		out = append(out, d...)
	case []interface{}:
		for _, e := range d {
			if obj, ok := e.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
	case map[string]interface{}:
		out = append(out, d)
	default:
		n.warn(owner, fmt.Sprintf("comments field has unsupported type %T, using empty list", d), nil)
	}

	for _, c := range out {
		for _, f := range []string{model.FieldCommentedAt, model.FieldCreatedAt, model.FieldDeletedAt} {
			if v, ok := c[f]; ok {
				c[f] = n.Timestamp(owner, f, v)
			}
		}
	}
	return out
}

func (n *Normalizer) decodeCommentJSON(owner string, s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		n.warn(owner, "comments field is not valid JSON, using empty list", err)
		return nil
	}
	return decoded
}

// Timestamp renders a date column as RFC3339. Unparseable strings become nil
// so one bad date never rejects the whole document.
func (n *Normalizer) Timestamp(owner string, field string, raw interface{}) interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return n.Timestamp(owner, field, *v)
	case []byte:
		return n.Timestamp(owner, field, string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			n.warn(owner, fmt.Sprintf("cannot parse %s, dropping value", field), err)
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Value converts driver values that would not serialize sensibly.
func (n *Normalizer) Value(raw interface{}) interface{} {
	switch v := raw.(type) {
	case []byte:
		return string(v)
	case datatypes.JSON:
		return string(v)
	default:
		return v
	}
}

func (n *Normalizer) warn(owner string, msg string, err error) {
	entry := n.log.WithField("post_id", owner)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"))
}
