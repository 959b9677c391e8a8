package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"garc/internal/runner"
	"garc/pkg/auth"
	"garc/pkg/collector"
	"garc/pkg/gab"
	"garc/pkg/output"
	"garc/pkg/ui"
)

type collectFunc func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error]

func addCollectCommands(root *cobra.Command, a *app) {
	search := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search posts by keyword",
		Long: `Search posts by keyword. Each argument is a separate query; quote
multi-word queries. With --parallel several queries run at once, each on its
own session.`,
		Example: `  garc search "free speech" --limit 100 -o speech.jsonl
  garc search cats dogs --parallel 2 --format sqlite -o pets.db`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			jobs := make([]runner.Job, 0, len(args))
			for _, q := range args {
				jobs = append(jobs, a.job("search:"+q, func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
					return c.Search(ctx, q, collector.SearchOptions{Sort: a.cfg.Collect.Sort, Limit: a.cfg.Collect.Limit})
				}))
			}
			return a.archive(cmd, a.opts.parallel, jobs...)
		},
	}
	search.Flags().StringVar(&a.opts.sort, "sort", "", "sort mode (date)")
	search.Flags().IntVar(&a.opts.limit, "limit", 0, "stop after about this many posts per query (0 = no limit)")
	search.Flags().IntVar(&a.opts.parallel, "parallel", 1, "number of queries collected at once")

	user := a.collectCmd("user <name>", "Fetch a user profile", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.User(ctx, args[0])
			}
		})

	userposts := a.collectCmd("userposts <name>", "Collect the posts of a user", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				since, _ := parseDate(a.opts.since)
				return c.UserPosts(ctx, args[0], collector.PostsOptions{Since: since, Limit: a.cfg.Collect.Limit})
			}
		})
	userposts.Flags().StringVar(&a.opts.since, "since", "", "oldest publish date to collect (YYYY-MM-DD or RFC3339; default is 20 minutes ago)")
	userposts.Flags().IntVar(&a.opts.limit, "limit", 0, "stop after about this many posts (0 = no limit)")
	userposts.PreRunE = func(cmd *cobra.Command, args []string) error {
		_, err := parseDate(a.opts.since)
		return err
	}

	usercomments := a.collectCmd("usercomments <name>", "Collect the comments of a user", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.UserComments(ctx, args[0], collector.CommentsOptions{Limit: a.cfg.Collect.Limit})
			}
		})
	usercomments.Flags().IntVar(&a.opts.limit, "limit", 0, "stop after about this many comments (0 = no limit)")

	followers := a.collectCmd("followers <name>", "Collect the followers of a user", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.Followers(ctx, args[0])
			}
		})

	following := a.collectCmd("following <name>", "Collect the accounts a user follows", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.Following(ctx, args[0])
			}
		})

	topicsearch := a.collectCmd("topicsearch <topic> <query>", "Search a topic timeline", cobra.ExactArgs(2),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.TopicSearch(ctx, args[0], args[1], a.timelineOptions())
			}
		})

	prosearch := a.collectCmd("prosearch <query>", "Search the pro timeline", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.ProSearch(ctx, args[0], a.timelineOptions())
			}
		})

	featuredsearch := a.collectCmd("featuredsearch <query>", "Search the timelines of featured groups", cobra.ExactArgs(1),
		func(args []string) collectFunc {
			return func(ctx context.Context, c *collector.Collector) iter.Seq2[*gab.Record, error] {
				return c.FeaturedSearch(ctx, args[0], a.timelineOptions())
			}
		})

	for _, cmd := range []*cobra.Command{topicsearch, prosearch, featuredsearch} {
		cmd.Flags().IntVar(&a.opts.limit, "limit", 0, "stop after about this many posts (0 = no limit)")
		cmd.Flags().StringVar(&a.opts.cutoff, "cutoff", "", "stop once a page holds only posts older than this date")
		cmd.Flags().IntVar(&a.opts.lookback, "lookback", 0, "posts sampled per page for the cutoff check")
		cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
			_, err := parseDate(a.opts.cutoff)
			return err
		}
	}

	root.AddCommand(search, user, userposts, usercomments, followers, following,
		topicsearch, prosearch, featuredsearch)
}

// collectCmd builds a single-job collection command
func (a *app) collectCmd(use, short string, args cobra.PositionalArgs, build func(args []string) collectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			name := cmd.Name() + ":" + strings.Join(args, " ")
			return a.archive(cmd, 1, a.job(name, build(args)))
		},
	}
}

func (a *app) timelineOptions() collector.TimelineOptions {
	cutoff, _ := parseDate(a.opts.cutoff)
	return collector.TimelineOptions{
		Limit:          a.cfg.Collect.Limit,
		Cutoff:         cutoff,
		LookbackSample: a.opts.lookback,
		Groups:         a.cfg.Collect.FeaturedGroups,
	}
}

// job wraps a collection so that every job gets its own client and session
func (a *app) job(name string, collect collectFunc) runner.Job {
	return runner.Job{
		Name: name,
		Run: func(ctx context.Context) iter.Seq2[*gab.Record, error] {
			return collect(ctx, a.newCollector())
		},
	}
}

func (a *app) newCollector() *collector.Collector {
	client := gab.NewClient(a.cfg, a.creds, a.log, a.clientOpts...)
	c := collector.New(client, a.log)
	c.SetLookbackSample(a.cfg.Collect.LookbackSample)
	return c
}

// archive runs jobs into the configured output and prints a summary. An
// interrupted run still closes the output and counts as success.
func (a *app) archive(cmd *cobra.Command, parallel int, jobs ...runner.Job) error {
	creds, err := a.credentials()
	if err != nil {
		return err
	}
	a.creds = creds
	if !creds.Complete() {
		a.log.Warn("credentials incomplete, login will fail")
	}

	sink, err := output.New(a.cfg.Output.Format, a.cfg.Output.Path, output.Options{
		RunID:  a.runID,
		Stdout: cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a.log.InfoWithFields("starting collection", map[string]interface{}{
		"command": cmd.Name(),
		"jobs":    len(jobs),
		"account": auth.Mask(creds.Account),
		"output":  a.cfg.Output.Path,
		"format":  a.cfg.Output.Format,
	})

	tracker := ui.NewStatusTracker()
	results, writeErr := runner.Run(ctx, parallel, sink, a.log, jobs)
	if archive, ok := sink.(*output.SQLiteWriter); ok {
		if total, err := archive.Count(); err == nil {
			ui.PrintInfo("Archive rows", fmt.Sprint(total))
		}
	}
	closeErr := sink.Close()

	var failed []error
	for _, r := range results {
		tracker.AddArchived(r.Records)
		if r.Err == nil || errors.Is(r.Err, context.Canceled) {
			continue
		}
		tracker.IncrementFailed()
		failed = append(failed, fmt.Errorf("%s: %w", r.Job.Name, r.Err))
	}
	tracker.PrintSummary()

	if err := errors.Join(writeErr, closeErr); err != nil {
		return err
	}
	if ctx.Err() != nil {
		a.log.Warn("interrupted, output closed")
		ui.PrintWarning("Interrupted")
		return nil
	}
	return errors.Join(failed...)
}

// parseDate accepts YYYY-MM-DD or RFC3339; an empty string is the zero time
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
