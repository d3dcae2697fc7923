package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pumpkin/internal/common"
)

var (
	cfgFile string
	logger  = common.GetLogger()
)

var rootCmd = &cobra.Command{
	Use:   "pumpkin",
	Short: "Batch web-performance measurement platform",
	Long: `Pumpkin drives a batch of URLs through a headless browser, captures
navigation timing, screenshots and HAR network logs, and persists the
results to a SQLite-backed store for later querying.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "pumpkin.toml",
		"config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(common.GetFullVersion())
	},
}

func loadConfig() (*common.Config, error) {
	return common.LoadFromFiles(cfgFile)
}

func main() {
	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	common.PrintBanner(common.GetVersion())

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
