package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elly0t/skycli/cli/model"
	"github.com/elly0t/skycli/cli/style"
)

var statusCmd = &cobra.Command{
	Use:     "status <cloud-code-id>",
	Short:   "Show the deploy status of a cloud code",
	Aliases: []string{"s"},
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cli, _, err := loadContext()
	if err != nil {
		return err
	}

	cc, err := client.GetCloudCode(cmd.Context(), cli, args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch cloud code: %w", err)
	}

	fmt.Println(renderCloudCode(cli.App, cc))
	return nil
}

func renderCloudCode(app string, cc *model.CloudCode) string {
	cardStyle := style.CardHealthy
	if cc.Status != model.CloudCodeStatusRunning {
		cardStyle = style.CardUnhealthy
	}

	var b strings.Builder

	name := cc.Name
	if name == "" {
		name = cc.ID
	}
	b.WriteString(style.Bold.Render(name))
	b.WriteString("  ")
	b.WriteString(style.CloudCodeStatus(string(cc.Status)).Render("● " + string(cc.Status)))
	b.WriteString("\n\n")

	kvLine := func(k, v string) {
		b.WriteString(style.Key.Render(k))
		b.WriteString(style.Val.Render(v))
		b.WriteString("\n")
	}

	kvLine("App", app)
	kvLine("ID", cc.ID)
	if cc.ArtifactID != "" {
		kvLine("Artifact", cc.ArtifactID)
	}
	if cc.CreatedAt != "" {
		kvLine("Created", cc.CreatedAt)
	}

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
