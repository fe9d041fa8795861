package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixperk/pixfaker/config"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "pixfaker <all|" + strings.Join(config.Names(), "|") + ">",
	Short: "Misbehaving BitTorrent seeders for testing clients",
	Long: Cyan + Bold + logoSmall + Reset + "\n  " + Dim +
		"Serves a fixed file over the peer wire protocol while injecting faults" + Reset,
	Args:      cobra.ExactArgs(1),
	ValidArgs: append([]string{"all"}, config.Names()...),
	RunE:      runFakers,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceErrors = true
	cfg.BindFlags(rootCmd.Flags())
}
