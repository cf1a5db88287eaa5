// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/config"
	"github.com/xkilldash9x/expectkit/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

var errNoConfig = errors.New("configuration not loaded")

// NewRootCommand builds a fresh command tree. Every call returns independent
// flag state, so tests and repeated invocations never share it.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "expectkit",
		Short:         "expectkit checks the test runs built on its harness.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting expectkit", zap.String("version", Version))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./expectkit.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.AddCommand(newCovergateCommand(), newConfigCommand(), newVersionCommand())
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}

func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errNoConfig
	}
	return cfg, nil
}
