package cmd

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/lectern-cli/lectern/auth"
	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/icon"
	"github.com/lectern-cli/lectern/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.SetOut(os.Stdout)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the platform sign-in",
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authLoginCmd.Flags().StringP("token", "t", "", "Access token issued by the platform")
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a platform access token in the system keyring",
	Run: func(cmd *cobra.Command, args []string) {
		token := lo.Must(cmd.Flags().GetString("token"))
		if token == "" {
			var err error
			token, err = readToken(os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
			handleErr(err)
		}

		handleErr(auth.SetToken(token))

		id, err := auth.Parse(token)
		handleErr(err)
		cmd.Printf("%s signed in as %s\n", style.Fg(color.Green)(icon.Get(icon.Success)), style.Fg(color.Purple)(describe(id)))
	},
}

func tokenPrompt() *survey.Password {
	return &survey.Password{
		Message: "Access token",
		Help:    "The token the course platform issues after you sign in on the web",
	}
}

// readToken prompts on a terminal and reads one line from anything else.
func readToken(in io.Reader, interactive bool) (string, error) {
	if !interactive {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	var token string
	err := survey.AskOne(tokenPrompt(), &token, survey.WithValidator(survey.Required), survey.WithIcons(func(icons *survey.IconSet) {
		icons.Question.Text = icon.Get(icon.Lock)
	}))
	return strings.TrimSpace(token), err
}

func describe(id auth.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return id.UserID
}

func init() {
	authCmd.AddCommand(authLogoutCmd)
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access token",
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(auth.DeleteToken())
		cmd.Printf("%s signed out\n", icon.Get(icon.Success))
	},
}

func init() {
	authCmd.AddCommand(authStatusCmd)
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	Run: func(cmd *cobra.Command, args []string) {
		_, id, err := auth.Current()
		handleErr(err)

		cmd.Printf("%s %s\n", style.Faint("user"), style.Bold(id.UserID))
		if id.Email != "" {
			cmd.Printf("%s %s\n", style.Faint("email"), id.Email)
		}

		switch {
		case id.Expires.IsZero():
		case id.Expired(time.Now()):
			cmd.Printf("%s %s\n", style.Faint("token"), style.Fg(color.Red)("expired, run `lectern auth login`"))
		default:
			cmd.Printf("%s valid until %s\n", style.Faint("token"), id.Expires.Local().Format("2006-01-02 15:04"))
		}
	},
}
