package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
	redisURL   string
	instance   string
	owner      string
)

var rootCmd = &cobra.Command{
	Use:   "roost",
	Short: "Roost - live audience polls and quizzes",
	Long: `Roost runs live polls and quizzes: a presenter steps through slides
while the audience votes from their own devices.

Presentations, sessions and votes live in Redis. Every command talks to
Redis directly, so the CLI can present, vote and report without roostd.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error printing is silenced;
// commands print through the printer package instead.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version shown by --version.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default roost.yml if present)")
	flags.StringVar(&redisURL, "redis-url", "", "Redis URL (overrides config and REDIS_URL)")
	flags.StringVar(&instance, "instance", "", "Instance namespace (overrides config and ROOST_INSTANCE)")
	flags.StringVar(&owner, "owner", "", "Owner id for created presentations and filtered listings")
}
