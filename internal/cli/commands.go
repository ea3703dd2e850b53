package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kpi/internal/domain/auth"
	"kpi/internal/domain/kpi"
)

var ErrBlockingWarnings = errors.New("configuration has blocking issues")

// Options are resolved from flags, .kpictl.yaml and KPICTL_* variables, in
// that order of precedence.
type Options struct {
	Config      string        `mapstructure:"config"`
	Period      string        `mapstructure:"period"`
	Roster      string        `mapstructure:"roster"`
	Format      string        `mapstructure:"format"`
	Concurrency int           `mapstructure:"concurrency"`
	Secret      string        `mapstructure:"secret"`
	User        string        `mapstructure:"user"`
	Role        string        `mapstructure:"role"`
	TTL         time.Duration `mapstructure:"ttl"`
}

type app struct {
	v          *viper.Viper
	configFile string
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "kpictl",
		Short:         "Evaluate KPI uploads offline",
		Long:          "kpictl scores KPI spreadsheets exported as CSV, resolves triggers and checks rules files without a running server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "settings", "", "settings file (default .kpictl.yaml)")
	root.PersistentFlags().StringP("config", "c", "", "rules file with metrics, triggers and ratings (defaults when empty)")
	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(a.previewCommand(), a.validateCommand(), a.defaultsCommand(), a.tokenCommand())
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix("KPICTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault("format", FormatTable)
	a.v.SetDefault("concurrency", 8)
	a.v.SetDefault("role", auth.RoleService)
	a.v.SetDefault("ttl", time.Hour)

	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading settings file: %w", err)
		}
		return nil
	}
	for _, path := range []string{".kpictl.yaml", ".kpictl.yml"} {
		if _, err := os.Stat(path); err == nil {
			a.v.SetConfigFile(path)
			if err := a.v.ReadInConfig(); err != nil {
				return fmt.Errorf("error reading settings file: %w", err)
			}
			break
		}
	}
	return nil
}

func (a *app) options() (Options, error) {
	var opts Options
	if err := a.v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("error unmarshaling settings: %w", err)
	}
	return opts, nil
}

func (a *app) previewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [files or globs...]",
		Short: "Score CSV uploads and show the triggers they would fire",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			if opts.Format != FormatTable && opts.Format != FormatJSON {
				return fmt.Errorf("unknown format %q (table|json)", opts.Format)
			}
			previews, err := Preview(cmd.Context(), opts, args)
			if err != nil {
				return err
			}
			return RenderPreview(cmd.OutOrStdout(), opts.Format, previews)
		},
	}
	cmd.Flags().StringP("period", "p", "", "evaluation period (YYYY-MM); read from the Month column when empty")
	cmd.Flags().String("roster", "", "CSV roster used to match employees")
	cmd.Flags().StringP("format", "f", FormatTable, "output format (table|json)")
	cmd.Flags().Int("concurrency", 8, "rows evaluated in parallel")
	a.bindFlags(cmd, "period", "roster", "format", "concurrency")
	return cmd
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a rules file and report configuration warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			cfg, err := LoadConfiguration(opts.Config)
			if err != nil {
				return err
			}
			warnings := cfg.Validate()
			RenderWarnings(cmd.OutOrStdout(), warnings)
			if blocking := kpi.Blocking(warnings); len(blocking) > 0 {
				return fmt.Errorf("%w: %d found", ErrBlockingWarnings, len(blocking))
			}
			return nil
		},
	}
}

func (a *app) defaultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in configuration as a rules file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := MarshalConfiguration(kpi.DefaultConfiguration())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for scheduled uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			token, err := MintToken(opts)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), token)
		},
	}
	cmd.Flags().String("user", "", "user id placed in the token")
	cmd.Flags().String("role", auth.RoleService, "role name placed in the token")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	cmd.Flags().String("secret", "", "signing secret (usually KPICTL_SECRET)")
	a.bindFlags(cmd, "user", "role", "ttl", "secret")
	return cmd
}

func (a *app) bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = a.v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

// MintToken signs a JWT the server's auth middleware accepts.
func MintToken(opts Options) (string, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return "", errors.New("a signing secret is required")
	}
	if strings.TrimSpace(opts.User) == "" {
		return "", errors.New("--user is required")
	}
	if _, ok := auth.RolePermissions[opts.Role]; !ok {
		return "", fmt.Errorf("unknown role %q", opts.Role)
	}
	if opts.TTL <= 0 {
		return "", errors.New("--ttl must be positive")
	}
	return auth.GenerateToken(opts.Secret, auth.Claims{UserID: opts.User, RoleName: opts.Role}, opts.TTL)
}

func writeLine(w io.Writer, line string) error {
	_, err := fmt.Fprintln(w, line)
	return err
}
