package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elly0t/skycli/cli/config"
	"github.com/elly0t/skycli/cli/style"
)

var validateIgnoreFile string

var validateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Check skygear.yaml and the cloud code sources it points at",
	Aliases: []string{"check", "lint"},
	Args:    cobra.NoArgs,
	RunE:    runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateIgnoreFile, "ignore-file", ".skyignore", "name of the per-directory ignore file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	project, err := config.LoadProject(".")
	if err != nil {
		return err
	}

	result := config.Validate(project, validateIgnoreFile)

	fmt.Println(style.Banner.Render("☁ SKYGEAR VALIDATE"))
	printResult(result)
	fmt.Println()

	if !result.Valid() {
		fmt.Println(style.ErrorBox.Render(fmt.Sprintf("  %d error(s), %d warning(s)  ", result.Errors, result.Warnings)))
		return errors.New("validation failed")
	}

	fmt.Println(style.SuccessBox.Render(fmt.Sprintf("  %s passed validation  ", config.ProjectFile)))
	return nil
}

func printResult(r *config.ValidationResult) {
	app := r.App
	if app == "" {
		app = "(no app)"
	}
	name := style.Bold.Render(padRight(app, 24))

	if r.Errors == 0 && r.Warnings == 0 {
		fmt.Printf("  %s %s\n", name, style.Healthy.Render("PASS"))
	} else {
		var parts []string
		if r.Errors > 0 {
			parts = append(parts, style.Unhealthy.Render(fmt.Sprintf("FAIL  %d error(s)", r.Errors)))
		}
		if r.Warnings > 0 {
			parts = append(parts, style.Warning.Render(fmt.Sprintf("%d warning(s)", r.Warnings)))
		}
		fmt.Printf("  %s %s\n", name, strings.Join(parts, "  "))
	}

	for _, f := range r.Findings {
		dot := style.DotDim
		switch f.Severity {
		case config.SeverityError:
			dot = style.DotUnhealthy
		case config.SeverityWarning:
			dot = style.DotWarning
		}

		tag := ""
		if f.Field != "" {
			tag = " " + style.DimText.Render("["+f.Field+"]")
		}

		fmt.Printf("    %s %s%s\n", dot, f.Message, tag)
	}
}
