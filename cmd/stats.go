package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixperk/pixfaker/journal"
)

var (
	statsURL   string
	statsLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats [profile]",
	Short: "Show what a running faker did to its clients",
	Long:  `Query the journal endpoint of a running pixfaker (see --stats-addr).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsURL, "url", "u", "http://127.0.0.1:8089", "Journal endpoint of the running faker")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "Number of recent sessions to list")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	client := journal.NewClient(statsURL)

	profile := ""
	if len(args) == 1 {
		profile = args[0]
	}
	profiles, stats, err := client.Scrape(profile)
	if err != nil {
		return err
	}

	PrintHeader("Journal")
	if profile == "" {
		PrintSection("Profiles")
		if len(profiles) == 0 {
			PrintInfo("no sessions recorded yet")
		}
		for _, p := range profiles {
			_, st, err := client.Scrape(p)
			if err != nil {
				return err
			}
			PrintKeyValue(p, fmt.Sprintf("%d sessions, %s served", st.Sessions, FormatBytes(st.Uploaded)))
		}
		return nil
	}

	PrintSection(profile)
	PrintKeyValueHighlight("Sessions", fmt.Sprintf("%d", stats.Sessions))
	PrintKeyValue("Served", FormatBytes(stats.Uploaded))
	for term, n := range stats.Terminations {
		PrintStatus(term, fmt.Sprintf("%d", n), terminationColor(journal.Termination(term)))
	}

	if len(stats.Faults) > 0 {
		PrintSection("Faults")
		for _, name := range stats.FaultNames() {
			PrintKeyValue(name, fmt.Sprintf("%d", stats.Faults[name]))
		}
	}

	sessions, err := client.Sessions(profile, statsLimit)
	if err != nil {
		return err
	}
	PrintSection("Recent sessions")
	for _, rec := range sessions {
		started := time.UnixMilli(rec.Started).Format(time.TimeOnly)
		line := fmt.Sprintf("%s %-21s %-9s bits=%s pieces=%d",
			started, rec.Remote, rec.Termination, rec.Bitfield, rec.Pieces)
		if len(rec.Faults) > 0 {
			line += " faults=" + strings.Join(rec.Faults, ",")
		}
		if len(rec.Flags) > 0 {
			line += " flags=" + strings.Join(rec.Flags, ",")
		}
		PrintInfo(line)
		if rec.Error != "" {
			fmt.Printf("    %s%s%s\n", Red, rec.Error, Reset)
		}
	}
	return nil
}

func terminationColor(term journal.Termination) string {
	switch term {
	case journal.TermEOF, journal.TermDone:
		return Green
	case journal.TermViolation:
		return Red
	case journal.TermHung:
		return Magenta
	default:
		return Yellow
	}
}
