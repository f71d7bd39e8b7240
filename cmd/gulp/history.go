package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ligustah/gulp/internal/config"
	"github.com/ligustah/gulp/internal/history"
	"github.com/ligustah/gulp/internal/progress"
)

// runHistory lists recorded downloads, oldest first.
func runHistory(args []string) int {
	out := newPrinter(stdout, stderr)

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	historyPath := fs.String("history", "", "History database path")
	configPath := fs.String("config", "", "YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: gulp history [options]

List downloads recorded by 'gulp get'.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			out.Errorf("%v", err)
			return ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		out.Errorf("%v", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{History: *historyPath})

	if cfg.History == "" {
		out.Errorf("no history database configured")
		return ExitInvalidArgs
	}
	if _, err := os.Stat(cfg.History); os.IsNotExist(err) {
		out.Infof("No downloads recorded")
		return ExitSuccess
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		out.Errorf("%v", err)
		return ExitFilesystemError
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		out.Errorf("%v", err)
		return ExitGeneralError
	}
	if len(records) == 0 {
		out.Infof("No downloads recorded")
		return ExitSuccess
	}

	fmt.Fprintln(stdout, historyTable(records))
	return ExitSuccess
}

func historyTable(records []history.Record) string {
	header := lipgloss.NewRenderer(stdout).NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("COMPLETED", "SIZE", "NAME", "PATH", "URL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, r := range records {
		t.Row(
			r.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			progress.FormatBytes(r.Bytes),
			r.Name,
			r.Path,
			r.URL,
		)
	}
	return t.String()
}
