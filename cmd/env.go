package cmd

import (
	"os"

	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/config"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().BoolP("set-only", "s", false, "Only list variables that are set")
	envCmd.Flags().BoolP("unset-only", "u", false, "Only list variables that are unset")
	envCmd.MarkFlagsMutuallyExclusive("set-only", "unset-only")
	envCmd.SetOut(os.Stdout)
}

type envVar struct {
	name   string
	secret bool
}

func envVars() []envVar {
	vars := lo.Map(config.Sorted(), func(f config.Field, _ int) envVar {
		return envVar{name: f.Env(), secret: f.Secret}
	})
	return append([]envVar{{name: where.EnvConfigPath}}, vars...)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables lectern reads",
	Run: func(cmd *cobra.Command, args []string) {
		setOnly := lo.Must(cmd.Flags().GetBool("set-only"))
		unsetOnly := lo.Must(cmd.Flags().GetBool("unset-only"))
		name := style.New().Bold(true).Foreground(color.Purple).Render

		for _, v := range envVars() {
			value, present := os.LookupEnv(v.name)
			if (setOnly && !present) || (unsetOnly && present) {
				continue
			}

			switch {
			case !present:
				value = style.Fg(color.Red)("unset")
			case v.secret:
				value = style.Faint("********")
			default:
				value = style.Fg(color.Green)(value)
			}
			cmd.Printf("%s=%s\n", name(v.name), value)
		}
	},
}
