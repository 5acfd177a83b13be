package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/config"
	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/player"
	"github.com/lectern-cli/lectern/progress"
	"github.com/lectern-cli/lectern/tui"
	"github.com/lectern-cli/lectern/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flushTimeout bounds how long exit waits for the last checkpoint.
const flushTimeout = 3 * time.Second

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("user", "u", "", "User id to record progress for when not signed in")
	watchCmd.Flags().BoolP("autoplay", "a", false, "Start playing as soon as the video is ready")
	lo.Must0(viper.BindPFlag(key.PlayerAutoplay, watchCmd.Flags().Lookup("autoplay")))
	watchCmd.Flags().Bool("native-hls", false, "Let the player load HLS manifests itself")
	lo.Must0(viper.BindPFlag(key.PlayerNativeHLS, watchCmd.Flags().Lookup("native-hls")))
}

var watchCmd = &cobra.Command{
	Use:     "watch <video-id>",
	Short:   "Play a course video, resuming where you left off",
	Example: constant.Lectern + " watch 6f1c7a52-2b0e-4d7c-9d7e-1f4c2b1a9e01",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(config.Validate())
		CheckDependencies()
		handleErr(watch(lo.Must(cmd.Flags().GetString("user")), args[0]))
	},
}

// watch plays one video and returns once the player screen closed and
// every resource it opened was released.
func watch(userFlag, videoID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, userID, err := identify(userFlag)
	if err != nil {
		return err
	}

	resolver, err := access.FromConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := progress.Open(ctx, token)
	if err != nil {
		return err
	}
	defer closeStore()

	queue := failureQueue()
	queue.ReconcileInBackground(ctx, store)

	element := newElement(videoID)
	defer util.Ignore(element.Close)

	var last *progress.Synchronizer
	controller, err := player.New(player.Options{
		Resolver: resolver,
		Token:    token,
		Element:  element,
		NewEngine: func(emit func(engine.Event)) engine.Engine {
			return engine.NewHLS(engineConfig(), emit)
		},
		NewSynchronizer: func(videoID string) player.Synchronizer {
			last = progress.NewSynchronizer(store, userID, videoID, progress.WithFailureQueue(queue))
			return last
		},
		Autoplay:           viper.GetBool(key.PlayerAutoplay),
		CheckpointInterval: viper.GetDuration(key.ProgressInterval),
		ControlsHideAfter:  viper.GetDuration(key.PlayerControlsHideAfter),
		ResumeTimeout:      viper.GetDuration(key.PlayerResumeTimeout),
	})
	if err != nil {
		return err
	}

	go func() {
		if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("player stopped")
		}
	}()

	uiErr := tui.Run(controller, videoID)
	_ = controller.Post(player.Close{})
	<-controller.Done()

	if last != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := last.Wait(flushCtx); err != nil {
			log.WithError(err).Warn("last checkpoint still pending at exit")
		}
		cancel()
	}

	return uiErr
}
