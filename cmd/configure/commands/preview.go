package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tandemhq/tandem-api/internal/recurrence"
	"github.com/tandemhq/tandem-api/internal/validation"
)

// NewPreviewCmd creates the preview command, which prints the next N
// occurrences of a recurrence spec without touching the database.
func NewPreviewCmd() *cobra.Command {
	var (
		pattern  string
		interval int
		timezone string
		start    string
		endDate  string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview upcoming occurrences of a recurrence spec",
		Long:  "Print the next N due dates for a recurrence pattern, starting from a given date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateRecurrencePattern(pattern); err != nil {
				return err
			}
			if err := validation.ValidateTimezone(timezone); err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive")
			}

			opts := recurrence.Options{
				Pattern:  recurrence.Pattern(pattern),
				Interval: interval,
				Timezone: timezone,
			}

			if endDate != "" {
				parsed := recurrence.ParseDueDate(endDate)
				if parsed == nil {
					return fmt.Errorf("invalid --end-date %q", endDate)
				}
				opts.EndDate = parsed
			}

			now := time.Now().UTC()
			base := now
			if strings.TrimSpace(start) != "" {
				parsed := recurrence.ParseDueDate(start)
				if parsed == nil {
					return fmt.Errorf("invalid --start %q", start)
				}
				base = *parsed
			}

			fmt.Printf("Next %d occurrence(s) of %s", count, pattern)
			if timezone != "" {
				fmt.Printf(" in %s", timezone)
			}
			fmt.Println(":")

			for i := 0; i < count; i++ {
				next, err := recurrence.NextDueDate(base, opts, now)
				if err != nil {
					return err
				}
				if opts.EndDate != nil && next.After(*opts.EndDate) {
					fmt.Println("  (schedule ends)")
					break
				}
				fmt.Printf("  %s\n", next.Format(time.RFC3339))
				base = next
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Recurrence pattern: daily, weekly, biweekly, monthly, quarterly, yearly (required)")
	cmd.Flags().IntVar(&interval, "interval", 1, "Interval multiplier for the pattern")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for calendar arithmetic (default UTC)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (RFC 3339 or YYYY-MM-DD; default now)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Schedule end date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&count, "count", 5, "Number of occurrences to print")
	_ = cmd.MarkFlagRequired("pattern")

	return cmd
}
