package cmd

import (
	"encoding/json"
	"os"

	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/where"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

// location is a directory or file lectern owns. Internal ones are only
// printed when asked for by flag.
type location struct {
	name     string
	flag     string
	short    mo.Option[string]
	path     func() string
	internal bool
}

var locations = []location{
	{name: "Config", flag: "config", short: mo.Some("c"), path: where.Config},
	{name: "Logs", flag: "logs", short: mo.Some("l"), path: where.Logs},
	{name: "Local progress", flag: "progress", short: mo.Some("p"), path: where.Progress},
	{name: "Unsynced checkpoints", flag: "queue", short: mo.Some("q"), path: where.FailedCheckpoints},
	{name: "Cache", flag: "cache", path: where.Cache, internal: true},
	{name: "Player sockets", flag: "sockets", path: where.Sockets, internal: true},
	{name: "Temp", flag: "temp", path: where.Temp, internal: true},
}

func init() {
	rootCmd.AddCommand(whereCmd)

	for _, l := range locations {
		whereCmd.Flags().BoolP(l.flag, l.short.OrEmpty(), false, l.name+" path")
		if l.internal {
			lo.Must0(whereCmd.Flags().MarkHidden(l.flag))
		}
	}
	whereCmd.Flags().BoolP("json", "j", false, "Print every location as JSON")

	whereCmd.MarkFlagsMutuallyExclusive(append(lo.Map(locations, func(l location, _ int) string {
		return l.flag
	}), "json")...)

	whereCmd.SetOut(os.Stdout)
}

var whereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where lectern keeps its files",
	Run: func(cmd *cobra.Command, args []string) {
		if l, ok := lo.Find(locations, func(l location) bool {
			return lo.Must(cmd.Flags().GetBool(l.flag))
		}); ok {
			cmd.Println(l.path())
			return
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			paths := lo.SliceToMap(locations, func(l location) (string, string) { return l.flag, l.path() })
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(paths))
			return
		}

		header := style.New().Bold(true).Foreground(color.Purple).Render
		visible := lo.Reject(locations, func(l location, _ int) bool { return l.internal })
		for i, l := range visible {
			if i > 0 {
				cmd.Println()
			}
			cmd.Printf("%s %s\n%s\n", header(l.name), style.Fg(color.Yellow)("--"+l.flag), l.path())
		}
	},
}
