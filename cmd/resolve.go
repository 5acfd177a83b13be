package cmd

import (
	"encoding/json"
	"os"
	"text/template"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/config"
	"github.com/lectern-cli/lectern/open"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolP("json", "j", false, "Print the grant as JSON")
	resolveCmd.Flags().BoolP("open", "o", false, "Open the embed player in the browser")
	resolveCmd.SetOut(os.Stdout)
}

type grantView struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Duration    string    `json:"duration"`
	PlayableURL string    `json:"playable_url"`
	EmbedURL    string    `json:"embed_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func newGrantView(videoID string, g access.Grant) grantView {
	return grantView{
		VideoID:     videoID,
		Title:       g.Video.Title,
		Duration:    util.FormatClock(float64(g.Video.DurationSeconds)),
		PlayableURL: g.PlayableURL,
		EmbedURL:    g.EmbedURL,
		ExpiresAt:   g.Expires,
	}
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <video-id>",
	Short: "Get a time-limited playable URL for a video",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(config.Validate())

		token, err := tokenForAccess()
		handleErr(err)

		resolver, err := access.FromConfig()
		handleErr(err)

		ctx, cancel := requestContext()
		defer cancel()

		grant, err := resolver.Resolve(ctx, args[0], token)
		handleErr(err)

		view := newGrantView(args[0], grant)

		if lo.Must(cmd.Flags().GetBool("json")) {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			handleErr(encoder.Encode(view))
		} else {
			t := template.Must(template.New("grant").Funcs(map[string]any{
				"faint":   style.Faint,
				"bold":    style.Bold,
				"magenta": style.Fg(color.Purple),
				"clock":   func(t time.Time) string { return t.Local().Format(time.Kitchen) },
			}).Parse(`{{ magenta "▇▇▇" }} {{ bold .Title }} {{ faint .Duration }}

  {{ faint "Playable" }}  {{ .PlayableURL }}
{{- if .EmbedURL }}
  {{ faint "Embed" }}     {{ .EmbedURL }}
{{- end }}
{{- if not .ExpiresAt.IsZero }}
  {{ faint "Expires" }}   {{ bold (clock .ExpiresAt) }}
{{- end }}
`))
			handleErr(t.Execute(cmd.OutOrStdout(), view))
		}

		if lo.Must(cmd.Flags().GetBool("open")) {
			handleErr(open.Start(lo.Ternary(grant.EmbedURL != "", grant.EmbedURL, grant.PlayableURL)))
		}
	},
}
