// Package collector exposes the named collection operations (search, user
// feeds, follower lists, timeline searches). Each call builds a fresh
// pagination engine and returns its records as a lazy sequence.
package collector

import (
	"context"
	"iter"
	"net/http"
	"strings"
	"time"

	"garc/pkg/gab"
	"garc/pkg/logger"
	"garc/pkg/normalize"
	"garc/pkg/paginate"
)

// DefaultUserPostsWindow is how far back UserPosts reaches without an explicit Since
const DefaultUserPostsWindow = 20 * time.Minute

// Collector runs collection operations over one client. Like the client, it
// is not safe for concurrent use.
type Collector struct {
	client   *gab.Client
	logger   logger.Logger
	lookback int
}

// New creates a collector over client
func New(client *gab.Client, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{client: client, logger: log, lookback: paginate.DefaultLookbackSample}
}

// SetLookbackSample sets the default lookback sample for timeline cutoffs
func (c *Collector) SetLookbackSample(n int) {
	if n > 0 {
		c.lookback = n
	}
}

// SearchOptions configure Search
type SearchOptions struct {
	// Sort is the v1 sort mode; only "date" is supported by the API
	Sort  string
	Limit int
}

// PostsOptions configure UserPosts
type PostsOptions struct {
	// Since is the lower bound; zero means DefaultUserPostsWindow before Now
	Since time.Time
	Limit int
	// Now supplies the current time; the client's clock when nil
	Now func() time.Time
}

// CommentsOptions configure UserComments
type CommentsOptions struct {
	Limit int
}

// TimelineOptions configure the timeline searches
type TimelineOptions struct {
	Limit int
	// Cutoff ends a timeline once sampled records of a page are all older
	Cutoff         time.Time
	LookbackSample int
	// Groups replaces the featured listing in FeaturedSearch when set
	Groups []string
}

// Search yields posts matching q, newest first
func (c *Collector) Search(ctx context.Context, q string, opts SearchOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	sort := opts.Sort
	if sort == "" {
		sort = "date"
	}
	if sort != "date" {
		c.logger.WarnWithFields("unsupported sort mode, using date", map[string]interface{}{"sort": sort})
		sort = "date"
	}

	var cursor paginate.Cursor = &paginate.OffsetCursor{}
	if endpoints.Version == "v2" {
		cursor = &paginate.IDCursor{}
	}

	return c.run(ctx, "search", &paginate.Engine{
		Fetch: c.pages(func(cur string) string {
			return endpoints.Search(q, sort, cur)
		}),
		Cursor: cursor,
		Limit:  opts.Limit,
	})
}

// User yields the profile record of username
func (c *Collector) User(ctx context.Context, username string) iter.Seq2[*gab.Record, error] {
	return func(yield func(*gab.Record, error) bool) {
		rec, err := c.client.GetRecord(ctx, c.client.Endpoints().User(username))
		if err != nil {
			yield(nil, err)
			return
		}
		normalize.Normalize(rec)
		yield(rec, nil)
	}
}

// UserPosts yields the posts of username published at or after the lower bound
func (c *Collector) UserPosts(ctx context.Context, username string, opts PostsOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return func(yield func(*gab.Record, error) bool) {
		since := opts.Since
		if since.IsZero() {
			now := opts.Now
			if now == nil {
				now = c.client.Clock().Now
			}
			since = now().Add(-DefaultUserPostsWindow)
		}

		engine := &paginate.Engine{
			Fetch: c.pages(func(cur string) string {
				return endpoints.UserFeed(username, cur)
			}),
			Cursor: &paginate.TimestampCursor{},
			Limit:  opts.Limit,
			Stop: func(r *gab.Record) bool {
				return !r.CreatedAt.IsZero() && r.CreatedAt.Before(since)
			},
		}
		for rec, err := range c.run(ctx, "userposts", engine) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// UserComments yields the comments of username. The comment feed answers 500
// once it is exhausted.
func (c *Collector) UserComments(ctx context.Context, username string, opts CommentsOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return c.run(ctx, "usercomments", &paginate.Engine{
		Fetch: c.pages(func(cur string) string {
			return endpoints.UserComments(username, cur)
		}, http.StatusInternalServerError),
		Cursor: &paginate.TimestampCursor{},
		Limit:  opts.Limit,
	})
}

// Followers yields the accounts following username
func (c *Collector) Followers(ctx context.Context, username string) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return c.run(ctx, "followers", &paginate.Engine{
		Fetch: c.pages(func(cur string) string {
			return endpoints.Followers(username, cur)
		}),
		Cursor: &paginate.OffsetCursor{},
	})
}

// Following yields the accounts username follows
func (c *Collector) Following(ctx context.Context, username string) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return c.run(ctx, "following", &paginate.Engine{
		Fetch: c.pages(func(cur string) string {
			return endpoints.Following(username, cur)
		}),
		Cursor: &paginate.OffsetCursor{},
	})
}

// TopicSearch yields posts of a topic timeline whose text contains q
func (c *Collector) TopicSearch(ctx context.Context, topic, q string, opts TimelineOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return c.run(ctx, "topicsearch", c.timelineEngine(func(cur string) string {
		return endpoints.TopicTimeline(topic, cur)
	}, matcher(q, nil), opts, opts.Limit))
}

// ProSearch yields posts of the pro timeline whose text contains q
func (c *Collector) ProSearch(ctx context.Context, q string, opts TimelineOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return c.run(ctx, "prosearch", c.timelineEngine(endpoints.ProTimeline, matcher(q, nil), opts, opts.Limit))
}

// FeaturedSearch lists the featured groups and walks each group timeline in
// turn, yielding posts whose text contains q. A post seen in an earlier group
// is not yielded again.
func (c *Collector) FeaturedSearch(ctx context.Context, q string, opts TimelineOptions) iter.Seq2[*gab.Record, error] {
	endpoints := c.client.Endpoints()
	return func(yield func(*gab.Record, error) bool) {
		groups, err := c.featuredGroups(ctx, opts.Groups)
		if err != nil {
			yield(nil, err)
			return
		}
		c.logger.InfoWithFields("walking featured groups", map[string]interface{}{
			"groups": len(groups),
		})

		seen := make(map[string]struct{})
		yielded := 0
		for _, group := range groups {
			remaining := 0
			if opts.Limit > 0 {
				remaining = opts.Limit - yielded
				if remaining <= 0 {
					return
				}
			}
			groupID := group.ID
			engine := c.timelineEngine(func(cur string) string {
				return endpoints.GroupTimeline(groupID, cur)
			}, matcher(q, seen), opts, remaining)

			for rec, err := range c.run(ctx, "featuredsearch", engine) {
				if err != nil {
					yield(nil, err)
					return
				}
				yielded++
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

func (c *Collector) featuredGroups(ctx context.Context, ids []string) ([]gab.Group, error) {
	if len(ids) > 0 {
		groups := make([]gab.Group, 0, len(ids))
		for _, id := range ids {
			groups = append(groups, gab.Group{ID: id})
		}
		return groups, nil
	}
	resp, err := c.client.Get(ctx, c.client.Endpoints().FeaturedGroups(), gab.FetchOptions{})
	if err != nil {
		return nil, err
	}
	return gab.DecodeGroups(resp.Body)
}

func (c *Collector) timelineEngine(build func(string) string, filter func(*gab.Record) bool, opts TimelineOptions, limit int) *paginate.Engine {
	lookback := opts.LookbackSample
	if lookback <= 0 {
		lookback = c.lookback
	}
	return &paginate.Engine{
		Fetch:          c.pages(build),
		Cursor:         &paginate.IDCursor{},
		Limit:          limit,
		Filter:         filter,
		Cutoff:         opts.Cutoff,
		LookbackSample: lookback,
	}
}

// matcher returns a filter accepting records whose decoded text contains q,
// case-insensitively. With a seen-set, records already accepted are rejected.
func matcher(q string, seen map[string]struct{}) func(*gab.Record) bool {
	needle := strings.ToLower(q)
	return func(r *gab.Record) bool {
		if needle != "" && !strings.Contains(strings.ToLower(normalize.Text(r.Content)), needle) {
			return false
		}
		if seen != nil && r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				return false
			}
			seen[r.ID] = struct{}{}
		}
		return true
	}
}

// pages adapts an endpoint URL builder into a page fetcher. Statuses in
// exhausted are read as the end of the stream.
func (c *Collector) pages(build func(cursor string) string, exhausted ...int) paginate.FetchFunc {
	return func(ctx context.Context, cursor string) (*gab.Page, error) {
		page, resp, err := c.client.GetPage(ctx, build(cursor), gab.FetchOptions{PassStatus: exhausted})
		if err != nil {
			return nil, err
		}
		if page == nil {
			c.logger.DebugWithFields("stream exhausted", map[string]interface{}{
				"status": resp.StatusCode,
				"cursor": cursor,
			})
			return &gab.Page{NoMore: true}, nil
		}
		return page, nil
	}
}

// run wires logging and normalization into an engine and logs the outcome
func (c *Collector) run(ctx context.Context, operation string, engine *paginate.Engine) iter.Seq2[*gab.Record, error] {
	engine.Transform = normalize.Normalize
	engine.Log = c.logger.WithField("operation", operation)
	return func(yield func(*gab.Record, error) bool) {
		defer func() {
			result := engine.Result()
			c.logger.InfoWithFields("collection finished", map[string]interface{}{
				"operation": operation,
				"state":     result.State.String(),
				"records":   result.Yielded,
				"requests":  result.Requests,
			})
		}()
		for rec, err := range engine.Run(ctx) {
			if !yield(rec, err) {
				return
			}
		}
	}
}
