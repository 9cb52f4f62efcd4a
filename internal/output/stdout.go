package output

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jakopako/mailwalk/internal/types"
	"github.com/olekukonko/tablewriter"
)

// StdoutWriter prints a summary table of a run.
type StdoutWriter struct {
	w io.Writer
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{w: os.Stdout}
}

func (w *StdoutWriter) WriteStatus(status types.RunStatus) error {
	return WriteSummary(w.w, status)
}

// WriteSummary renders the per sender counts of a run as a table.
func WriteSummary(w io.Writer, status types.RunStatus) error {
	if status.Account != "" {
		fmt.Fprintf(w, "Account: %s\n", status.Account)
	}
	fmt.Fprintf(w, "Outcome: %s\n", status.Outcome)
	if status.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", status.Error)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Sender", "Emails", "With CTA")
	totalCTAs := 0
	for _, s := range status.Senders {
		emails := strconv.Itoa(s.NrProcessed)
		if s.NoMatches {
			emails = "no matches"
		}
		if err := table.Append(s.Sender, emails, strconv.Itoa(s.NrCTAs)); err != nil {
			return err
		}
		totalCTAs += s.NrCTAs
	}
	table.Footer("total", strconv.Itoa(status.NrProcessed), strconv.Itoa(totalCTAs))
	return table.Render()
}
