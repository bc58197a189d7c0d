package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuttingtool/toolinspect/pkg/events"
)

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		Aliases: []string{"watch"},
		Short:   "Follow daemon events as they happen",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Fail fast if the daemon is down; the stream itself only logs.
			if _, err := apiClient.GetVersion(); err != nil {
				return err
			}

			for ev := range apiClient.SubscribeEvents(ctx) {
				cmd.Printf("%s %s %s\n", time.Now().Format(time.Kitchen), bold("%-20s", ev.Name), describeEvent(ev))
			}
			return nil
		},
	}
}

func describeEvent(ev events.Event) string {
	switch ev.Name {
	case events.CalibrationPhase:
		if p, err := events.DecodeAs[events.CalibrationPhaseEvent](ev); err == nil {
			s := p.From + " -> " + p.To
			if p.Message != "" {
				s += ": " + p.Message
			}
			return s
		}
	case events.CalibrationAction:
		if p, err := events.DecodeAs[events.CalibrationActionEvent](ev); err == nil {
			return p.Action + ": " + p.Message
		}
	case events.AnalysisProgress:
		if p, err := events.DecodeAs[events.AnalysisProgressEvent](ev); err == nil {
			return bold("%d/%d", p.Index, p.Total) + " " + p.FileName + " " + p.Summary
		}
	case events.AnalysisCompleted:
		if p, err := events.DecodeAs[events.AnalysisCompletedEvent](ev); err == nil {
			return bold("%d reports", p.Reports) + ", " + bold("%d failed", p.Failed) + " in " + (time.Duration(p.DurationMs) * time.Millisecond).String()
		}
	case events.ResultsUpdated:
		if p, err := events.DecodeAs[events.ResultsUpdatedEvent](ev); err == nil {
			return p.Reason + " (" + p.Material + ", offset " + bold("%+.1f°", p.Offset) + ")"
		}
	case events.HistoryPruned:
		if p, err := events.DecodeAs[events.HistoryPrunedEvent](ev); err == nil {
			return bold("%d", p.Removed) + " reports removed"
		}
	}
	return string(ev.Data)
}
