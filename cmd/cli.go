package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"reactive/pkg/build"
)

// Options is what the CLI resolves to: either a one-off command ("list",
// "pick") or serve mode with flag overrides applied on top of the config
// file.
type Options struct {
	Command   string
	ServeMode bool

	ConfigPath string
	DeviceName string
	Bars       int
	Mode       string
	Record     bool
	OutputDir  string
	Verbose    bool
}

// ParseArgs builds the cobra command tree, executes it against os.Args, and
// returns the resolved options.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-reactive animation parameter engine",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.ServeMode = true
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio output devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Interactively pick the loopback source device",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "pick"
		},
	}
	rootCmd.AddCommand(pickCmd)

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "f", "",
		"Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&options.DeviceName, "device", "d", "",
		"Preferred output device name. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&options.Bars, "bands", "b", 0,
		"Number of log-spaced band levels (0 = use config)")
	rootCmd.PersistentFlags().StringVarP(&options.Mode, "mode", "m", "",
		"Animation mode: focus, hyper or minimal")
	rootCmd.PersistentFlags().BoolVarP(&options.Record, "record", "r", false,
		"Record the captured loopback stream to WAV")
	rootCmd.PersistentFlags().StringVarP(&options.OutputDir, "output", "o", "",
		"Directory for WAV recordings")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
