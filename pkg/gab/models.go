package gab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	errs "garc/pkg/errors"
)

// Record is one post, comment or account returned by the API. Only the fields
// garc acts on are typed; everything else is kept verbatim in Extra.
type Record struct {
	ID        string
	CreatedAt time.Time
	Account   string
	Content   string
	// Text is the normalized plain-text rendering of Content
	Text string

	Extra map[string]json.RawMessage
}

// timestampLayouts are tried in order when parsing publish timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON decodes a record and keeps every field in Extra
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Extra = raw

	if id, ok := raw["id"]; ok {
		r.ID = decodeID(id)
	}

	for _, key := range []string{"published_at", "created_at"} {
		var ts string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &ts) == nil && ts != "" {
			if parsed, err := parseTimestamp(ts); err == nil {
				r.CreatedAt = parsed
				break
			}
		}
	}

	r.Content = firstString(raw, "content", "body")
	if r.Content == "" {
		if nested, ok := raw["post"]; ok {
			var post map[string]json.RawMessage
			if json.Unmarshal(nested, &post) == nil {
				r.Content = firstString(post, "body", "content")
			}
		}
	}

	for _, key := range []string{"actor", "account", "user"} {
		if nested, ok := raw[key]; ok {
			var owner map[string]json.RawMessage
			if json.Unmarshal(nested, &owner) == nil {
				if name := firstString(owner, "username", "acct"); name != "" {
					r.Account = name
					break
				}
			}
		}
	}
	if r.Account == "" {
		r.Account = firstString(raw, "username", "acct")
	}

	// a non-string upstream "text" is left in Extra and rederived by normalize
	r.Text = firstString(raw, "text")
	return nil
}

// MarshalJSON writes the original fields plus the derived "text" field
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	if _, ok := out["id"]; !ok && r.ID != "" {
		out["id"] = r.ID
	}
	if _, ok := out["created_at"]; !ok && !r.CreatedAt.IsZero() {
		out["created_at"] = r.CreatedAt.Format(time.RFC3339)
	}
	if _, ok := out["content"]; !ok && r.Content != "" {
		if _, hasBody := out["body"]; !hasBody {
			out["content"] = r.Content
		}
	}
	out["text"] = r.Text
	return json.Marshal(out)
}

// Field decodes an untyped field into target
func (r *Record) Field(name string, target interface{}) error {
	raw, ok := r.Extra[name]
	if !ok {
		return fmt.Errorf("field %q not present", name)
	}
	return json.Unmarshal(raw, target)
}

func decodeID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Page is one decoded response of a paginated endpoint
type Page struct {
	Records []*Record
	// NoMore is set when the server flags the stream as finished
	NoMore bool
}

type envelope struct {
	Data     []*Record `json:"data"`
	Statuses []*Record `json:"statuses"`
	Accounts []*Record `json:"accounts"`
	NoMore   bool      `json:"no-more"`
}

// DecodePage decodes either a bare JSON array or an object wrapping the
// records in "data" (v1) or "statuses"/"accounts" (v2 search)
func DecodePage(body []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Page{}, nil
	}

	switch trimmed[0] {
	case '[':
		var records []*Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, parsingError(err, trimmed)
		}
		return &Page{Records: compact(records)}, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, parsingError(err, trimmed)
		}
		records := env.Data
		if records == nil {
			records = env.Statuses
		}
		if records == nil {
			records = env.Accounts
		}
		return &Page{Records: compact(records), NoMore: env.NoMore}, nil
	default:
		return nil, parsingError(fmt.Errorf("unexpected leading byte %q", trimmed[0]), trimmed)
	}
}

// compact drops null entries so a page never carries nil records
func compact(records []*Record) []*Record {
	out := records[:0]
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// DecodeRecord decodes a single object response such as a user profile
func DecodeRecord(body []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(bytes.TrimSpace(body), &rec); err != nil {
		return nil, parsingError(err, body)
	}
	return &rec, nil
}

// Group is an entry of the featured groups listing
type Group struct {
	ID    string
	Title string
}

// DecodeGroups decodes the featured groups listing
func DecodeGroups(body []byte) ([]Group, error) {
	page, err := DecodePage(body)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(page.Records))
	for _, rec := range page.Records {
		if rec.ID == "" {
			continue
		}
		groups = append(groups, Group{ID: rec.ID, Title: firstString(rec.Extra, "title", "name")})
	}
	return groups, nil
}

func parsingError(err error, body []byte) error {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return errs.Wrap(errs.ErrorTypeParsing, err,
		fmt.Sprintf("failed to parse JSON (%s)", strings.TrimSpace(preview)))
}
