package main

import (
	"github.com/spf13/cobra"

	"cracksql/internal/bootstrap"
	"cracksql/internal/config"
)

// cli carries the flags shared by every command and the components built
// from them.
type cli struct {
	configFile string
	offline    bool
	logLevel   string

	app *bootstrap.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "cracksql",
		Short: "Translate SQL statements between MySQL, PostgreSQL and Oracle",
		Long: `cracksql rewrites the dialect specific pieces of a statement one at a
time, checking the result against the target grammar after each round.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "answer with the built-in rewrite rules instead of a chat model")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		c.translateCmd(),
		c.signatureCmd(),
		c.piecesCmd(),
		c.dialectsCmd(),
		c.mcpCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	cfg.Logging.Format = "text"
	log, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	c.app, err = bootstrap.Build(cfg, log, bootstrap.Options{Offline: c.offline})
	return err
}
