package main

import (
	"github.com/spf13/cobra"

	"ctxview/internal/event"
	"ctxview/internal/query"
)

var viewCmd = &cobra.Command{
	Use:   "view [--show-context[=T1,T2]] <EventType> <recording>...",
	Short: "List every event of one type with its fields",
	Long: `view prints one row per event of the given type. With --show-context the
fields of every context span active on the event's thread are appended as
extra columns, optionally limited to the listed context types.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := st.applyShowContext(cmd); err != nil {
			return err
		}
		typeName := args[0]
		return runQuery(cmd, st, args[1:], func(c *event.Catalog) *query.Query {
			return query.ForView(typeName, c)
		})
	},
}

func init() {
	addShowContextFlag(viewCmd)
}
