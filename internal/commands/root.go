package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "get-allassets",
	Short: "Global asset snapshot pipeline",
	Long: `Builds a daily ranked snapshot of the world's largest assets.

The pipeline merges global equities and commodities from Financial
Modeling Prep with cryptocurrencies from CoinGecko, applies emergency
currency corrections and plausibility caps to the market caps, removes
duplicate tickers, and keeps the top assets by market cap. Results are
written to MySQL, a JSON snapshot file, and a Redis cache, with run
events published on NATS and recorded in InfluxDB.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
