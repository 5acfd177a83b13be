package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/auth"
	"github.com/lectern-cli/lectern/config"
	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/icon"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/progress"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CheckDependencies exits when the configured player binary is not in PATH.
func CheckDependencies() {
	binary := viper.GetString(key.PlayerBinary)
	if _, err := exec.LookPath(binary); err != nil {
		printMissingDependencyError(binary)
		os.Exit(1)
	}
}

func installHint(goos string) string {
	switch goos {
	case constant.Darwin:
		return "brew install mpv"
	case constant.Linux:
		return "sudo apt install mpv"
	case constant.Windows:
		return "scoop install mpv"
	default:
		return ""
	}
}

func printMissingDependencyError(dep string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.ErrorColor).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(style.ErrorColor).Render(icon.Get(icon.Fail) + " Player not found")
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf("lectern plays videos through %q, which is not in your PATH.", dep))

	suggestion := ""
	if hint := installHint(runtime.GOOS); hint != "" && dep == "mpv" {
		suggestion = fmt.Sprintf("\n\nInstall it with:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(hint))
	} else if dep != "mpv" {
		suggestion = "\n\nSet " + style.Bold(key.PlayerBinary) + " to a player that speaks the mpv JSON-IPC protocol."
	}

	fmt.Println(box.Render(lipgloss.JoinVertical(lipgloss.Left, title, "\n", body, suggestion)))
}

// errWarning marks a finding that does not stop playback.
var errWarning = errors.New("warning")

type diagnosis struct {
	name  string
	check func(ctx context.Context) (string, error)
}

var diagnoses = []diagnosis{
	{"settings", func(context.Context) (string, error) {
		return config.Path(), config.Validate()
	}},
	{"player", func(context.Context) (string, error) {
		path, err := exec.LookPath(viper.GetString(key.PlayerBinary))
		if err != nil {
			return "", fmt.Errorf("%s not in PATH, try %s", viper.GetString(key.PlayerBinary), installHint(runtime.GOOS))
		}
		return path, nil
	}},
	{"sign-in", func(context.Context) (string, error) {
		_, id, err := auth.Current()
		switch {
		case errors.Is(err, auth.ErrNotSignedIn) && viper.GetString(key.AccessMode) == access.ModeDirect:
			return "not signed in, direct access does not need it", errWarning
		case err != nil:
			return "", err
		case id.Expired(time.Now()):
			return "token expired, run `lectern auth login`", errWarning
		default:
			return describe(id), nil
		}
	}},
	{"progress store", func(ctx context.Context) (string, error) {
		token, _ := auth.GetToken()
		_, closeStore, err := progress.Open(ctx, token)
		if err != nil {
			return "", err
		}
		closeStore()
		return viper.GetString(key.ProgressBackend), nil
	}},
	{"unsynced checkpoints", func(context.Context) (string, error) {
		pending, err := failureQueue().Pending()
		if err != nil {
			return "", err
		}
		if len(pending) > 0 {
			return util.Quantify(len(pending), "checkpoint", "checkpoints") + " waiting, run `lectern progress sync`", errWarning
		}
		return "none", nil
	}},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.SetOut(os.Stdout)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that lectern can play videos and save progress",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext()
		defer cancel()

		failed := 0
		for _, d := range diagnoses {
			detail, err := d.check(ctx)

			mark := style.Fg(style.SuccessColor)(icon.Get(icon.Success))
			switch {
			case errors.Is(err, errWarning):
				mark = style.Fg(style.WarningColor)("!")
			case err != nil:
				mark = style.Fg(style.ErrorColor)(icon.Get(icon.Fail))
				detail = err.Error()
				failed++
			}
			cmd.Printf("%s %s %s\n", mark, style.Bold(d.name), style.Faint(detail))
		}

		if failed > 0 {
			os.Exit(1)
		}
	},
}
