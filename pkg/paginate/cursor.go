package paginate

import (
	"strconv"
	"time"

	"garc/pkg/gab"
)

// Cursor tracks the position of a paginated stream. Cursors are advanced only
// from the last record of a page and never move backwards.
type Cursor interface {
	// Value is the query parameter for the next request; empty on the first page
	Value() string
	// Advance moves the cursor past a consumed page
	Advance(page []*gab.Record)
}

// OffsetCursor counts records received so far
type OffsetCursor struct {
	n int
}

func (c *OffsetCursor) Value() string {
	if c.n == 0 {
		return ""
	}
	return strconv.Itoa(c.n)
}

func (c *OffsetCursor) Advance(page []*gab.Record) {
	c.n += len(page)
}

// TimestampCursor pages backwards in time by publish timestamp
type TimestampCursor struct {
	t time.Time
}

func (c *TimestampCursor) Value() string {
	if c.t.IsZero() {
		return ""
	}
	// full precision; a truncated value would skip records within the same second
	return c.t.UTC().Format(time.RFC3339Nano)
}

func (c *TimestampCursor) Advance(page []*gab.Record) {
	if len(page) == 0 {
		return
	}
	last := page[len(page)-1].CreatedAt
	if last.IsZero() {
		return
	}
	if c.t.IsZero() || last.Before(c.t) {
		c.t = last
	}
}

// IDCursor pages by the id of the last record (max_id)
type IDCursor struct {
	id string
}

func (c *IDCursor) Value() string {
	return c.id
}

func (c *IDCursor) Advance(page []*gab.Record) {
	if len(page) == 0 {
		return
	}
	last := page[len(page)-1].ID
	if last == "" {
		return
	}
	if c.id != "" {
		// ids are snowflakes; newer ids are larger
		cur, errCur := strconv.ParseUint(c.id, 10, 64)
		next, errNext := strconv.ParseUint(last, 10, 64)
		if errCur == nil && errNext == nil && next >= cur {
			return
		}
	}
	c.id = last
}
