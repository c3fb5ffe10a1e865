package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]*$`)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type Finding struct {
	Check    string
	Severity Severity
	Message  string
	Field    string
}

type ValidationResult struct {
	App      string
	Errors   int
	Warnings int
	Infos    int
	Findings []Finding
}

func (r *ValidationResult) Add(f Finding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SeverityError:
		r.Errors++
	case SeverityWarning:
		r.Warnings++
	case SeverityInfo:
		r.Infos++
	}
}

func (r *ValidationResult) Valid() bool {
	return r.Errors == 0
}

// Validate checks a project config before anything is sent to the
// controller. ignoreFile is the ignore file name deploys will look for.
func Validate(p *Project, ignoreFile string) *ValidationResult {
	r := &ValidationResult{App: p.App}

	if p.Path == "" {
		r.Add(Finding{
			Check:    "project.file.missing",
			Severity: SeverityError,
			Message:  fmt.Sprintf("no %s found in this directory or any parent", ProjectFile),
		})
		return r
	}

	if p.App == "" {
		r.Add(Finding{
			Check:    "project.app.required",
			Severity: SeverityError,
			Message:  "app name is required",
			Field:    "app",
		})
	}

	if len(p.CloudCode) == 0 {
		r.Add(Finding{
			Check:    "project.cloud_code.empty",
			Severity: SeverityWarning,
			Message:  "no cloud code configured, nothing to deploy",
			Field:    "cloud_code",
		})
	}

	for _, name := range p.CloudCodeNames() {
		checkCloudCode(p, name, ignoreFile, r)
	}
	return r
}

func checkCloudCode(p *Project, name, ignoreFile string, r *ValidationResult) {
	field := "cloud_code." + name

	if !validName.MatchString(name) {
		r.Add(Finding{
			Check:    "cloud_code.name.format",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("cloud code name %q should match [a-z0-9][a-z0-9-_]*", name),
			Field:    field,
		})
	}

	cfg, _ := p.LookupCloudCode(name)
	info, err := os.Stat(cfg.Src)
	switch {
	case err != nil:
		r.Add(Finding{
			Check:    "cloud_code.src.missing",
			Severity: SeverityError,
			Message:  fmt.Sprintf("source %s does not exist", cfg.Src),
			Field:    field + ".src",
		})
		return
	case !info.IsDir():
		r.Add(Finding{
			Check:    "cloud_code.src.not_dir",
			Severity: SeverityError,
			Message:  fmt.Sprintf("source %s is not a directory", cfg.Src),
			Field:    field + ".src",
		})
		return
	}

	if cfg.Environment == "" {
		r.Add(Finding{
			Check:    "cloud_code.environment.required",
			Severity: SeverityWarning,
			Message:  "environment is not set, the controller default will be used",
			Field:    field + ".environment",
		})
	}

	if _, err := os.Stat(filepath.Join(cfg.Src, ignoreFile)); err != nil {
		r.Add(Finding{
			Check:    "cloud_code.ignore.missing",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("no %s in source root, every file will be uploaded", ignoreFile),
			Field:    field + ".src",
		})
	}
}
