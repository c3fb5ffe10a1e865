package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/elly0t/skycli/cli/api"
	"github.com/elly0t/skycli/cli/config"
	"github.com/elly0t/skycli/cli/model"
)

var (
	flags   config.Overrides
	verbose bool
	plain   bool

	client *api.Client
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "skycli",
	Short: "Command line client for the Skygear cloud platform",
	Long: `skycli deploys cloud code to a Skygear app.

Cluster credentials live in ~/.config/skycli/config, the app and its cloud
code in skygear.yaml at the project root. SKYCLI_ENDPOINT, SKYCLI_API_KEY,
SKYCLI_ACCESS_TOKEN and SKYCLI_APP override both.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose || config.DeveloperMode(os.Getenv) {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		client = api.New(Version)
		client.Logger = logger
	},
	SilenceUsage: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.App, "app", "", "app name, overrides skygear.yaml")
	pf.StringVar(&flags.Endpoint, "endpoint", "", "controller endpoint, overrides the current context")
	pf.StringVar(&flags.APIKey, "api-key", "", "controller API key")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log requests and pipeline progress to stderr")
	pf.BoolVar(&plain, "plain", false, "print plain progress lines instead of the interactive view")
}

// loadContext reads both config files from the working directory and
// applies env and flag overrides on top.
func loadContext() (model.CLIContext, *config.Project, error) {
	global, err := config.LoadGlobal(config.GlobalPath())
	if err != nil {
		return model.CLIContext{}, nil, err
	}
	project, err := config.LoadProject(".")
	if err != nil {
		return model.CLIContext{}, nil, err
	}
	cli, err := config.Resolve(global, project, config.FromEnv(os.Getenv), flags)
	if err != nil {
		return cli, project, err
	}
	logger.Debug("resolved context", "app", cli.App, "endpoint", cli.Endpoint, "project", project.Path)
	return cli, project, nil
}

func interactive() bool {
	return !plain && term.IsTerminal(int(os.Stdout.Fd()))
}
