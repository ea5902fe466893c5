package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecord renders rec as a field table followed by a step table.
func printRecord(w io.Writer, rec generation.ProgressRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Client ID", rec.ClientID})
	tw.AppendRow(table.Row{"Status", rec.Status})
	tw.AppendRow(table.Row{"Progress", fmt.Sprintf("%d%%", rec.Progress)})
	tw.AppendRow(table.Row{"Current step", rec.CurrentStep})
	tw.AppendRow(table.Row{"Message", rec.Message})
	if rec.PreviewURL != "" {
		tw.AppendRow(table.Row{"Preview URL", rec.PreviewURL})
	}
	if rec.RepositoryURL != "" {
		tw.AppendRow(table.Row{"Repository URL", rec.RepositoryURL})
	}
	if rec.Error != "" {
		tw.AppendRow(table.Row{"Error", rec.Error})
	}
	if rec.EstimatedTimeRemaining != nil {
		tw.AppendRow(table.Row{"Time remaining", fmt.Sprintf("~%ds", *rec.EstimatedTimeRemaining)})
	}
	if !rec.UpdatedAt.IsZero() {
		tw.AppendRow(table.Row{"Updated", rec.UpdatedAt.Format(time.RFC3339)})
	}
	tw.Render()

	steps := table.NewWriter()
	steps.SetOutputMirror(w)
	steps.AppendHeader(table.Row{"Step", "State"})
	for _, id := range generation.Steps {
		steps.AppendRow(table.Row{id, rec.Steps[id]})
	}
	steps.Render()
}

// progressLine is the one-line form printed for each polled update.
func progressLine(rec generation.ProgressRecord) string {
	return fmt.Sprintf("[%3d%%] %-11s %-14s %s", rec.Progress, rec.Status, rec.CurrentStep, rec.Message)
}
