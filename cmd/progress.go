package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/icon"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/progress"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/util"
	"github.com/lectern-cli/lectern/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.PersistentFlags().StringP("user", "u", "", "User id to use when not signed in")
	progressCmd.PersistentFlags().StringP("backend", "b", "", "Progress backend: "+strings.Join(progress.AvailableBackends(), ", "))
	lo.Must0(viper.BindPFlag(key.ProgressBackend, progressCmd.PersistentFlags().Lookup("backend")))
	lo.Must0(progressCmd.RegisterFlagCompletionFunc("backend", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return progress.AvailableBackends(), cobra.ShellCompDirectiveNoFileComp
	}))
	progressCmd.SetOut(os.Stdout)
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Read and write watch progress",
}

// parseClock accepts whole seconds or m:ss / h:mm:ss.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}

	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

// withStore runs fn against the configured store and closes it before
// returning fn's error.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store progress.Store, userID string) error) error {
	token, userID, err := identify(lo.Must(cmd.Flags().GetString("user")))
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	store, closeStore, err := progress.Open(ctx, token)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, store, userID)
}

func init() {
	progressCmd.AddCommand(progressGetCmd)
	progressGetCmd.Flags().BoolP("json", "j", false, "Print the record as JSON")
}

var progressGetCmd = &cobra.Command{
	Use:   "get <video-id>",
	Short: "Show the saved position for a video",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(withStore(cmd, func(ctx context.Context, store progress.Store, userID string) error {
			rec, err := store.Get(ctx, userID, args[0])
			if err != nil {
				return err
			}

			if lo.Must(cmd.Flags().GetBool("json")) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(rec)
			}

			printRecord(cmd, args[0], rec)
			return nil
		}))
	},
}

func printRecord(cmd *cobra.Command, videoID string, rec progress.Record) {
	state := style.Fg(color.Yellow)("in progress")
	switch {
	case rec.IsCompleted:
		state = style.Fg(color.Green)("completed")
	case rec.ProgressSeconds == 0:
		state = style.Faint("not started")
	}

	cmd.Printf("%s %s %s", style.Bold(videoID), util.FormatClock(float64(rec.ProgressSeconds)), state)
	if !rec.LastWatchedAt.IsZero() {
		cmd.Printf(" %s", style.Faint("last watched "+rec.LastWatchedAt.Local().Format("2006-01-02 15:04")))
	}
	cmd.Println()
}

func init() {
	progressCmd.AddCommand(progressSetCmd)
	progressSetCmd.Flags().BoolP("completed", "c", false, "Mark the video as completed")
}

var progressSetCmd = &cobra.Command{
	Use:   "set <video-id> <position>",
	Short: "Save a position for a video",
	Long:  "Save a position for a video. The position is whole seconds or m:ss.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		seconds, err := parseClock(args[1])
		handleErr(err)
		completed := lo.Must(cmd.Flags().GetBool("completed"))

		handleErr(withStore(cmd, func(ctx context.Context, store progress.Store, userID string) error {
			if err := store.Save(ctx, userID, args[0], seconds, completed); err != nil {
				return err
			}
			cmd.Printf(
				"%s saved %s at %s\n",
				style.Fg(color.Green)(icon.Get(icon.Success)),
				style.Fg(color.Purple)(args[0]),
				style.Fg(color.Yellow)(util.FormatClock(float64(seconds))),
			)
			return nil
		}))
	},
}

func init() {
	progressCmd.AddCommand(progressSyncCmd)
}

var progressSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry checkpoints that could not be saved earlier",
	Run: func(cmd *cobra.Command, args []string) {
		queue := failureQueue()

		pending, err := queue.Pending()
		handleErr(err)
		if len(pending) == 0 {
			cmd.Printf("%s nothing to sync\n", icon.Get(icon.Success))
			return
		}

		handleErr(withStore(cmd, func(ctx context.Context, store progress.Store, _ string) error {
			synced, err := queue.Reconcile(ctx, store)
			cmd.Printf("%s synced %s\n", icon.Get(icon.Success), util.Quantify(synced, "checkpoint", "checkpoints"))
			return err
		}))
	},
}

func init() {
	progressCmd.AddCommand(progressListCmd)
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored progress",
	Run: func(cmd *cobra.Command, args []string) {
		if viper.GetString(key.ProgressBackend) != progress.BackendLocal {
			handleErr(errors.New("list needs the local backend, use --backend local"))
		}

		_, userID, err := identify(lo.Must(cmd.Flags().GetString("user")))
		handleErr(err)

		records, err := progress.NewLocal(where.Progress()).All(userID)
		handleErr(err)

		if len(records) == 0 {
			cmd.Println(style.Faint("no progress yet"))
			return
		}

		for _, rec := range records {
			printRecord(cmd, rec.VideoID, rec)
		}
	},
}
