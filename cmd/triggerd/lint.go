package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"orbit-erp/triggerkit/pkg/cli"
	"orbit-erp/triggerkit/pkg/rule"
	"orbit-erp/triggerkit/pkg/rule/vocab"
)

var lintFlags struct {
	file      string
	dir       string
	vocabPath string
	format    string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate trigger files",
	Long: `Validate trigger YAML files for structural and vocabulary errors.

The lint command parses trigger files and checks:
  - YAML syntax and trigger structure (name, event, conditions, actions)
  - Action configs (required fields per action type)
  - Event names, field names, and action types against the vocabulary
  - Operator compatibility (numeric operators need numeric fields,
    custom_field conditions need a key)

Examples:
  # Lint a single file
  triggerd lint --file triggers.yaml

  # Lint a directory
  triggerd lint --dir triggers/

  # Lint against a custom vocabulary
  triggerd lint --file triggers.yaml --vocabulary vocab.yaml

  # JSON output for CI
  triggerd lint --file triggers.yaml --format json`,
	RunE: lintTriggers,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "trigger file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of trigger files")
	lintCmd.Flags().StringVar(&lintFlags.vocabPath, "vocabulary", "", "vocabulary file (default: built-in)")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintIssue is one problem found in a trigger file.
type lintIssue struct {
	File    string `json:"file"`
	Trigger string `json:"trigger"`
	Message string `json:"message"`
}

// lintReport is the aggregate lint result.
type lintReport struct {
	Files    int         `json:"files"`
	Triggers int         `json:"triggers"`
	Issues   []lintIssue `json:"issues"`
}

func lintTriggers(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list trigger files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no trigger files found")
	}

	v := vocab.Default()
	if lintFlags.vocabPath != "" {
		loaded, err := vocab.Load(lintFlags.vocabPath)
		if err != nil {
			return cli.NewCommandError("lint", err)
		}
		v = loaded
	}

	report := lintReport{Issues: []lintIssue{}}
	for _, file := range files {
		report.Files++
		triggers, err := loadTriggerFile(file)
		if err != nil {
			report.Issues = append(report.Issues, lintIssue{File: file, Message: err.Error()})
			continue
		}
		for _, t := range triggers {
			report.Triggers++
			for _, msg := range checkTrigger(t, v) {
				report.Issues = append(report.Issues, lintIssue{File: file, Trigger: t.Name, Message: msg})
			}
		}
	}

	if lintFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else {
		for _, issue := range report.Issues {
			name := issue.Trigger
			if name == "" {
				name = "-"
			}
			fmt.Printf("✗ %s [%s]: %s\n", issue.File, name, issue.Message)
		}
		fmt.Printf("%d file(s), %d trigger(s), %d issue(s)\n",
			report.Files, report.Triggers, len(report.Issues))
	}

	if len(report.Issues) > 0 {
		return fmt.Errorf("lint found %d issue(s)", len(report.Issues))
	}
	return nil
}

// checkTrigger validates one trigger definition against the vocabulary and
// returns a message per problem.
func checkTrigger(t *rule.Trigger, v *vocab.Vocabulary) []string {
	var issues []string

	if err := t.Validate(); err != nil {
		issues = append(issues, err.Error())
	}

	if t.Event != "" && !v.KnowsEvent(t.Event) {
		issues = append(issues, fmt.Sprintf("unknown event %q", t.Event))
	}

	check := func(group string, conditions []rule.Condition) {
		for i, c := range conditions {
			where := fmt.Sprintf("%s condition %d", group, i)

			def, known := v.Field(c.Field)
			if c.Field != "" && !known {
				issues = append(issues, fmt.Sprintf("%s: unknown field %q", where, c.Field))
				continue
			}
			if def.Keyed && c.Key == "" {
				issues = append(issues, fmt.Sprintf("%s: field %q requires a key", where, c.Field))
			}
			if !def.Keyed && c.Key != "" {
				issues = append(issues, fmt.Sprintf("%s: field %q does not take a key", where, c.Field))
			}
			if c.Operator.IsNumeric() && c.Value.Kind != rule.ValueNumber {
				issues = append(issues, fmt.Sprintf("%s: operator %s needs a numeric value", where, c.Operator))
			}
			if !knownOperator(c.Operator) {
				issues = append(issues, fmt.Sprintf("%s: unknown operator %q", where, c.Operator))
			}
			if c.Value.IsZero() {
				issues = append(issues, fmt.Sprintf("%s: missing value", where))
			}
		}
	}
	check("all", t.Conditions.All)
	check("any", t.Conditions.Any)

	for i, a := range t.Actions {
		if !v.KnowsAction(a.Type) {
			issues = append(issues, fmt.Sprintf("action %d: type %q not in vocabulary", i, a.Type))
		}
	}

	return issues
}

func knownOperator(op rule.Operator) bool {
	for _, o := range rule.Operators() {
		if o == op {
			return true
		}
	}
	return false
}
