package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gish-sh/gish/internal/config"
	"github.com/gish-sh/gish/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [PATH]",
	Short: "List recorded refreshes",
	Long: `List the refresh cycles gish has recorded, newest first.

Each cycle is one change signal: when it was triggered, how many file events
it covered, and how each pane respawn went.

Example usage:
  gish history                        # Last 20 refreshes, any repository
  gish history . --since "2 hours ago"
  gish history --since 2026-10-01 --limit 100 --json
  gish history --prune 30d            # Delete refreshes older than 30 days`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("since", "", `Only cycles after this time ("90m", "yesterday", "2026-10-01")`)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of cycles (0 for all)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.Flags().String("prune", "", `Delete cycles older than this ("30d", "last month") and exit`)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	since, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	prune, _ := cmd.Flags().GetString("prune")

	cfg, err := config.Load(cfgFile, nil)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
		fmt.Println("No history recorded yet")
		return nil
	}

	ctx := context.Background()
	db, err := history.Open(cfg.History.Path, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	if prune != "" {
		cutoff, err := history.ParseSince(expandDays(prune), now)
		if err != nil {
			return fmt.Errorf("invalid --prune: %w", err)
		}
		n, err := db.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d cycle(s) started before %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	q := history.Query{Limit: limit}
	if since != "" {
		if q.Since, err = history.ParseSince(expandDays(since), now); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}
	if len(args) == 1 {
		if q.Root, err = filepath.Abs(args[0]); err != nil {
			return err
		}
	}

	cycles, err := db.List(ctx, q)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cycles)
	}
	if len(cycles) == 0 {
		fmt.Println("No matching refreshes")
		return nil
	}
	fmt.Println(historyTable(cycles, q.Root == ""))
	return nil
}

// expandDays accepts "30d" as shorthand for 720h.
func expandDays(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil && strings.HasSuffix(s, "d") {
		return fmt.Sprintf("%dh", n*24)
	}
	return s
}

func historyTable(cycles []history.Cycle, showRoot bool) string {
	headers := []string{"#", "TRIGGERED", "EVENTS", "PATH", "TOOK", "PANES"}
	if showRoot {
		headers = append(headers, "REPOSITORY")
	}

	failed := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 5 && row >= 0 && row < len(cycles) && cycles[row].Failed() > 0 {
				return failed.PaddingRight(2)
			}
			return s
		})

	for _, c := range cycles {
		row := []string{
			strconv.FormatUint(c.Seq, 10),
			c.Triggered.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(c.Events),
			relPath(c.Root, c.Path),
			c.Finished.Sub(c.Started).Round(time.Millisecond).String(),
			paneSummary(c),
		}
		if showRoot {
			row = append(row, c.Root)
		}
		t.Row(row...)
	}
	return t.Render()
}

func relPath(root, path string) string {
	if path == "" {
		return "-"
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func paneSummary(c history.Cycle) string {
	if len(c.Spawns) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(c.Spawns))
	for _, s := range c.Spawns {
		if s.Error != "" {
			parts = append(parts, s.Role+" failed")
		} else {
			parts = append(parts, s.Role)
		}
	}
	return strings.Join(parts, ", ")
}
