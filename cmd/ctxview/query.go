package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctxview/internal/event"
	"ctxview/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] <recording>...",
	Short: "Run a structured query, optionally grouped and aggregated",
	Long: `query selects fields of one or more event types. References of the form
Type.field name contextual fields of the spans active on the event's thread.

  ctxview query --from WorkEvent --select task --select Trace.traceId rec.ctxr
  ctxview query --from WorkEvent --group-by Trace.traceId \
      --select Trace.traceId --select 'sum(duration)' rec.ctxr

Without --from the [query] section of ctxview.toml is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := st.applyShowContext(cmd); err != nil {
			return err
		}
		q, err := queryFromFlags(cmd, st)
		if err != nil {
			return err
		}
		return runQuery(cmd, st, args, func(*event.Catalog) *query.Query { return q })
	},
}

func init() {
	queryCmd.Flags().StringArray("select", nil, "output column: ref or agg(ref); repeatable")
	queryCmd.Flags().StringSlice("from", nil, "display event types")
	queryCmd.Flags().StringArray("where", nil, "filter ref=value; repeatable")
	queryCmd.Flags().StringSlice("group-by", nil, "grouping references")
	addShowContextFlag(queryCmd)
}

// queryFromFlags starts from the configured [query] and replaces every part
// given on the command line.
func queryFromFlags(cmd *cobra.Command, st *settings) (*query.Query, error) {
	q := &query.Query{}
	if st.cfg.HasQuery() {
		*q = st.cfg.Query
	}
	flags := cmd.Flags()

	if flags.Changed("select") {
		refs, err := flags.GetStringArray("select")
		if err != nil {
			return nil, fmt.Errorf("failed to get select flag: %w", err)
		}
		q.Select = q.Select[:0:0]
		for _, ref := range refs {
			q.Select = append(q.Select, query.ParseColumn(ref))
		}
	}
	if flags.Changed("from") {
		from, err := flags.GetStringSlice("from")
		if err != nil {
			return nil, fmt.Errorf("failed to get from flag: %w", err)
		}
		q.From = from
	}
	if flags.Changed("where") {
		conds, err := flags.GetStringArray("where")
		if err != nil {
			return nil, fmt.Errorf("failed to get where flag: %w", err)
		}
		q.Where = q.Where[:0:0]
		for _, s := range conds {
			c, err := query.ParseCondition(s)
			if err != nil {
				return nil, err
			}
			q.Where = append(q.Where, c)
		}
	}
	if flags.Changed("group-by") {
		groupBy, err := flags.GetStringSlice("group-by")
		if err != nil {
			return nil, fmt.Errorf("failed to get group-by flag: %w", err)
		}
		q.GroupBy = groupBy
	}
	return q, nil
}
