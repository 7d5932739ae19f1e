package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/snonux/bookmaker/internal"
	"codeberg.org/snonux/bookmaker/internal/notify"
)

// Runner executes the subcommands. It is created after the configuration
// has been loaded, so it sees flag, environment and config file values.
type Runner interface {
	Translate(ctx context.Context, paths []string) error
	Preview(path string) error
	ListModels(ctx context.Context, kind string) error
	ListLanguages() error
	ArchiveState() error
}

// RunnerFactory builds the Runner for one invocation
type RunnerFactory func(flags *Flags) (Runner, error)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bookmaker",
		Short: "Bilingual book translator",
		Long: `bookmaker translates EPUB, TXT and SRT files paragraph by paragraph and
writes a bilingual copy next to the input.

Examples:
  bookmaker translate novel.epub --language ja      # novel_bilingual.epub
  bookmaker translate story.txt --limit 20          # try the first 20 paragraphs
  bookmaker translate film.srt --resume             # continue an interrupted run
  bookmaker translate --queue books.txt             # translate several files
  bookmaker preview novel.epub                      # show the extracted text
  bookmaker models gemini                           # list selectable models
  bookmaker archive                                 # set the progress database aside`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.bookmaker.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: console or json")
	rootCmd.PersistentFlags().StringVar(&flags.StateDB, "state-db", "", "Progress database (default $XDG_STATE_HOME/bookmaker/progress.db)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("state.db", rootCmd.PersistentFlags().Lookup("state-db"))

	rootCmd.AddCommand(
		newTranslateCommand(flags, newRunner),
		newPreviewCommand(flags, newRunner),
		newModelsCommand(flags, newRunner),
		newLanguagesCommand(flags, newRunner),
		newArchiveCommand(flags, newRunner),
	)
	return rootCmd
}

// normalizeFlagName accepts the config file spelling of flags, e.g.
// --batch_size for --batch-size
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newTranslateCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [file...]",
		Short: "Translate EPUB, TXT or SRT files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && flags.QueueFile == "" {
				return errors.New("no input: pass a file or --queue")
			}
			runner, err := newRunner(ResolveFlags(flags))
			if err != nil {
				return err
			}
			return runner.Translate(cmd.Context(), args)
		},
	}
	setupFlags(cmd, flags)
	return cmd
}

func newPreviewCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show the beginning of the text that would be translated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(ResolveFlags(flags))
			if err != nil {
				return err
			}
			return runner.Preview(args[0])
		},
	}
	cmd.Flags().IntVar(&flags.PreviewLimit, "chars", flags.PreviewLimit, "Number of characters to show")
	return cmd
}

func newModelsCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models of one or all providers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(ResolveFlags(flags))
			if err != nil {
				return err
			}
			kind := ""
			if len(args) == 1 {
				kind = args[0]
			}
			return runner.ListModels(cmd.Context(), kind)
		},
	}
	cmd.Flags().BoolVar(&flags.Remote, "remote", false, "Ask the provider API for its live model list")
	cmd.Flags().StringVar(&flags.Keys, "key", "", "API key used with --remote")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Endpoint used with --remote")
	return cmd
}

func newLanguagesCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported target languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(ResolveFlags(flags))
			if err != nil {
				return err
			}
			return runner.ListLanguages()
		},
	}
}

func newArchiveCommand(flags *Flags, newRunner RunnerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Move the progress database to the archive so no run can resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(ResolveFlags(flags))
			if err != nil {
				return err
			}
			return runner.ArchiveState()
		},
	}
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	// Provider flags
	cmd.Flags().StringVarP(&flags.Provider, "provider", "p", flags.Provider, "Translation provider: openai, claude, groq, xai, qwen, gemini, deepl, caiyun, google")
	cmd.Flags().StringVar(&flags.Keys, "key", "", "API key, or several comma-separated keys to rotate through")
	cmd.Flags().StringSliceVar(&flags.Models, "model", nil, "Model to use; repeat or comma-separate to cycle through several")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Override the provider endpoint (OpenAI-compatible servers)")
	cmd.Flags().BoolVar(&flags.RotateEveryCall, "rotate-every-call", false, "Use the next key for every request instead of only after failures")
	cmd.Flags().Float64Var(&flags.RPS, "rps", flags.RPS, "Maximum requests per second (0 disables the limit)")

	// Translation flags
	cmd.Flags().StringVarP(&flags.Language, "language", "l", flags.Language, "Target language code, see 'bookmaker languages'")
	cmd.Flags().BoolVar(&flags.Single, "single", false, "Replace the original text instead of writing both languages")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "Translate only the first N paragraphs (0 translates everything)")
	cmd.Flags().BoolVar(&flags.PercentAsCount, "percent-as-count", false, "Treat --limit as the percentage setting of the web front end (used as a paragraph count)")
	cmd.Flags().BoolVar(&flags.Resume, "resume", false, "Continue a previous run of the same file")
	cmd.Flags().StringVar(&flags.Style, "style", "", "Inline CSS for translated EPUB paragraphs (e.g. 'color: #808080')")
	cmd.Flags().IntVar(&flags.BatchSize, "batch-size", flags.BatchSize, "Paragraphs per request for providers with batch support")
	cmd.Flags().IntVar(&flags.MaxAttempts, "max-attempts", flags.MaxAttempts, "Attempts per paragraph on rate limits and transient errors")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Output file (default <name>_bilingual<ext> next to the input)")
	cmd.Flags().StringVar(&flags.QueueFile, "queue", "", "Translate the files listed in this file (one per line, optional '= language')")

	// State and notification flags
	cmd.Flags().BoolVar(&flags.NoState, "no-state", false, "Keep progress in memory only")
	cmd.Flags().StringVar(&flags.NotifyEmail, "notify-email", "", "Mail a summary and the result to this address (needs smtp settings)")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("provider.kind", cmd.Flags().Lookup("provider"))
	viper.BindPFlag("provider.models", cmd.Flags().Lookup("model"))
	viper.BindPFlag("provider.base_url", cmd.Flags().Lookup("base-url"))
	viper.BindPFlag("provider.rotate_every_call", cmd.Flags().Lookup("rotate-every-call"))
	viper.BindPFlag("provider.rps", cmd.Flags().Lookup("rps"))
	viper.BindPFlag("translate.language", cmd.Flags().Lookup("language"))
	viper.BindPFlag("translate.single", cmd.Flags().Lookup("single"))
	viper.BindPFlag("translate.style", cmd.Flags().Lookup("style"))
	viper.BindPFlag("translate.batch_size", cmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("translate.max_attempts", cmd.Flags().Lookup("max-attempts"))
	viper.BindPFlag("notify.email", cmd.Flags().Lookup("notify-email"))
}

// ResolveFlags fills flags from viper so config file and environment values
// apply where a flag was not given on the command line
func ResolveFlags(flags *Flags) *Flags {
	flags.LogLevel = viper.GetString("log.level")
	flags.LogFormat = viper.GetString("log.format")

	if viper.IsSet("provider.kind") {
		flags.Provider = viper.GetString("provider.kind")
	}
	if models := viper.GetStringSlice("provider.models"); len(models) > 0 {
		flags.Models = models
	}
	if viper.IsSet("provider.base_url") {
		flags.BaseURL = viper.GetString("provider.base_url")
	}
	if viper.IsSet("provider.rotate_every_call") {
		flags.RotateEveryCall = viper.GetBool("provider.rotate_every_call")
	}
	if viper.IsSet("provider.rps") {
		flags.RPS = viper.GetFloat64("provider.rps")
	}
	if viper.IsSet("translate.language") {
		flags.Language = viper.GetString("translate.language")
	}
	if viper.IsSet("translate.single") {
		flags.Single = viper.GetBool("translate.single")
	}
	if viper.IsSet("translate.style") {
		flags.Style = viper.GetString("translate.style")
	}
	if viper.IsSet("translate.batch_size") {
		flags.BatchSize = viper.GetInt("translate.batch_size")
	}
	if viper.IsSet("translate.max_attempts") {
		flags.MaxAttempts = viper.GetInt("translate.max_attempts")
	}
	if viper.IsSet("state.db") {
		flags.StateDB = viper.GetString("state.db")
	}
	if viper.IsSet("notify.email") {
		flags.NotifyEmail = viper.GetString("notify.email")
	}

	if flags.LogLevel == "" {
		flags.LogLevel = "info"
	}
	if flags.LogFormat == "" {
		flags.LogFormat = "console"
	}
	return flags
}

// InitConfig loads .env, the config file and the environment
func InitConfig(cfgFile string) {
	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".bookmaker" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookmaker")
	}

	// Environment variables, e.g. BOOKMAKER_PROVIDER_KIND
	viper.SetEnvPrefix("BOOKMAKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// nativeKeyEnv lists the variables the vendors' own tools read
var nativeKeyEnv = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"claude": {"ANTHROPIC_API_KEY"},
	"groq":   {"GROQ_API_KEY"},
	"xai":    {"XAI_API_KEY"},
	"qwen":   {"DASHSCOPE_API_KEY"},
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"deepl":  {"DEEPL_AUTH_KEY"},
	"caiyun": {"CAIYUN_TOKEN"},
}

// GetProviderKeys retrieves the comma-separated key pool of a provider: the
// --key flag, then BOOKMAKER_<KIND>_KEY, then the vendor's variable, then
// keys.<kind> in the config file
func GetProviderKeys(kind, flagKeys string) string {
	if strings.TrimSpace(flagKeys) != "" {
		return flagKeys
	}

	kind = strings.ToLower(strings.TrimSpace(kind))
	if key := os.Getenv("BOOKMAKER_" + strings.ToUpper(kind) + "_KEY"); key != "" {
		return key
	}
	for _, name := range nativeKeyEnv[kind] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}

	// Then check config file; a YAML list is accepted as well
	if keys := viper.GetStringSlice("keys." + kind); len(keys) > 1 {
		return strings.Join(keys, ",")
	}
	return viper.GetString("keys." + kind)
}

// GetEmailConfig reads the smtp section of the config file
func GetEmailConfig(to string) notify.EmailConfig {
	attach := true
	if viper.IsSet("smtp.attach") {
		attach = viper.GetBool("smtp.attach")
	}
	return notify.EmailConfig{
		Host:          viper.GetString("smtp.host"),
		Port:          viper.GetString("smtp.port"),
		Username:      viper.GetString("smtp.username"),
		Password:      viper.GetString("smtp.password"),
		From:          viper.GetString("smtp.from"),
		To:            to,
		Attach:        attach,
		MaxAttachment: viper.GetInt64("smtp.max_attachment"),
	}
}
