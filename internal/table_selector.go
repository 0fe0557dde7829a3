package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// AskFunc matches survey.AskOne.
type AskFunc func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error

// TableSelector lets the user pick which discovered tables to migrate.
type TableSelector struct {
	tables []string
	ask    AskFunc
	out    io.Writer
}

func NewTableSelector(tables []string) *TableSelector {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	return &TableSelector{
		tables: sorted,
		ask:    survey.AskOne,
		out:    os.Stdout,
	}
}

// WithPrompter replaces survey.AskOne and the output writer.
func (ts *TableSelector) WithPrompter(ask AskFunc, out io.Writer) *TableSelector {
	ts.ask = ask
	ts.out = out
	return ts
}

// SelectTables presents a checkbox list and asks for confirmation.
func (ts *TableSelector) SelectTables() ([]string, error) {
	if len(ts.tables) == 0 {
		return nil, fmt.Errorf("no tables available for selection")
	}

	Logger.Debug("Prompting for table selection", "count", len(ts.tables))
	fmt.Fprintf(ts.out, "\n📋 Found %d table(s) in the source schema.\n", len(ts.tables))
	fmt.Fprintln(ts.out, "Use ↑/↓ to navigate, SPACE to select/deselect, ENTER to confirm")

	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Select tables to migrate:",
		Options: ts.tables,
		Description: func(value string, index int) string {
			if len(value) > 50 {
				return fmt.Sprintf("Table %d", index+1)
			}
			return ""
		},
		PageSize: 15,
	}

	if err := ts.ask(prompt, &selected, survey.WithPageSize(15)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return nil, fmt.Errorf("selection cancelled by user")
		}
		return nil, fmt.Errorf("selection error: %w", err)
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no tables selected")
	}

	ts.printSelection(selected)

	var confirm bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Migrate %d selected table(s)? Existing target tables are replaced.", len(selected)),
		Default: true,
	}
	if err := ts.ask(confirmPrompt, &confirm); err != nil {
		return nil, fmt.Errorf("confirmation error: %w", err)
	}
	if !confirm {
		return nil, fmt.Errorf("operation cancelled by user")
	}

	return selected, nil
}

// SelectByNumbers resolves a numbered selection such as "1,3,5" or "all"
// against the sorted table list, for terminals where the checkbox prompt is
// unavailable.
func (ts *TableSelector) SelectByNumbers(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") {
		return ts.tables, nil
	}

	var selected []string
	seen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if num >= 1 && num <= len(ts.tables) && !seen[num] {
			selected = append(selected, ts.tables[num-1])
			seen[num] = true
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no tables selected")
	}
	ts.printSelection(selected)
	return selected, nil
}

func (ts *TableSelector) printSelection(selected []string) {
	fmt.Fprintf(ts.out, "\n✅ Selected %d table(s):\n", len(selected))
	for i, table := range selected {
		fmt.Fprintf(ts.out, "  %d. %s\n", i+1, table)
	}
}
