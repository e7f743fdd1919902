package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the simtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("simtrader version %s\n", version)
		fmt.Println("AI-driven paper trading simulations for crypto assets")
		fmt.Println("https://github.com/rustyeddy/simtrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
