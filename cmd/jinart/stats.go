package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jina-lang/jinart/core"
)

func renderStats(w io.Writer, stats []core.ActorStats, m core.Metrics) error {
	if len(stats) == 0 {
		_, _ = fmt.Fprintln(w, "(no live actors)")
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Name", "Kind", "State", "Processed", "Mailbox", "Cells", "Last message"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
			{Number: 7, Align: text.AlignRight},
		})

		var processed uint64
		for _, s := range stats {
			kind := "worker"
			if s.UI {
				kind = "ui"
			}
			t.AppendRow(table.Row{
				s.ID, s.Name, kind, s.State,
				s.MessagesProcessed, s.MailboxSize, s.Cells,
				since(s.LastMessageAt),
			})
			processed += s.MessagesProcessed
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d actors", len(stats)), "", "", processed})
		t.Render()
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Workers", "Spawned", "Terminated", "Delivered", "Dead letters", "Batches", "UI cycles", "Events"})
	t.AppendRow(table.Row{m.Workers, m.Spawned, m.Terminated, m.Delivered, m.DeadLetters, m.Batches, m.UICycles, m.Events})
	t.Render()
	return nil
}

func since(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return time.Since(at).Truncate(time.Millisecond).String() + " ago"
}
