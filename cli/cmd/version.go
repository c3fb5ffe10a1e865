package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/elly0t/skycli/cli/style"
)

var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		logo := lipgloss.NewStyle().
			Bold(true).
			Foreground(style.Primary).
			Render(`
  ┌─┐┬┌─┬ ┬┌─┐┬  ┬
  └─┐├┴┐└┬┘│  │  │
  └─┘┴ ┴ ┴ └─┘┴─┘┴`)

		// Version works without a login, so a partial context is fine.
		cli, _, _ := loadContext()

		fmt.Println(logo)
		fmt.Println()
		fmt.Printf("  %s %s\n", style.Key.Render("Version"), style.Val.Render(Version))
		fmt.Printf("  %s %s\n", style.Key.Render("Endpoint"), orDash(cli.Endpoint))
		fmt.Printf("  %s %s\n", style.Key.Render("App"), orDash(cli.App))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func orDash(s string) string {
	if s == "" {
		return style.DimText.Render("-")
	}
	return style.Val.Render(s)
}
