package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/kindvoice/internal/export"
	"github.com/nadzzz/kindvoice/internal/history"
	"github.com/nadzzz/kindvoice/internal/tone"
)

func newHistoryCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Review and export saved conversations",
	}
	cmd.AddCommand(newHistoryListCmd(load), newHistoryStatsCmd(load), newHistoryExportCmd(load))
	return cmd
}

func openStore(load loader) (*history.Store, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.Storage)
}

func newHistoryListCmd(load loader) *cobra.Command {
	var toneID, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f history.Filter
			if toneID != "" {
				t, ok := tone.Parse(toneID)
				if !ok {
					return fmt.Errorf("unknown tone %q (choose %s)", toneID, toneIDs())
				}
				f.Tone = t
			}
			f.Query = search

			store, err := openStore(load)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.ListConversations(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No conversations found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTONE\tMESSAGE")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.ID, c.Timestamp.Local().Format("2006-01-02 15:04"), c.Tone, truncate(c.UserMessage, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&toneID, "tone", "t", "", "only this tone ("+toneIDs()+")")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text search")
	return cmd
}

func newHistoryStatsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation and reflection statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Conversations\t%d\n", st.Conversations)
			fmt.Fprintf(w, "Reflections\t%d\n", st.Reflections)
			fmt.Fprintf(w, "Avg. wellness\t%.1f\n", st.AverageRating)
			fmt.Fprintf(w, "Per day\t%.1f\n", st.PerDay)
			return w.Flush()
		},
	}
}

func newHistoryExportCmd(load loader) *cobra.Command {
	var id, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one conversation or the whole history as text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var (
				filename string
				render   func(io.Writer) error
			)
			if id != "" {
				conv, err := store.Conversation(ctx, id)
				if err != nil {
					return err
				}
				entry := export.Entry{Conversation: conv}
				refl, ok, err := store.ReflectionFor(ctx, id)
				if err != nil {
					return err
				}
				if ok {
					entry.Reflection = &refl
				}
				filename = export.ConversationFilename(entry)
				render = func(w io.Writer) error { return export.Conversation(w, entry) }
			} else {
				convs, err := store.Conversations(ctx)
				if err != nil {
					return err
				}
				refls, err := store.Reflections(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				filename = export.AllFilename(now)
				render = func(w io.Writer) error { return export.All(w, export.Pair(convs, refls), now) }
			}

			switch out {
			case "-":
				return render(cmd.OutOrStdout())
			case "":
				out = filename
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating export: %w", err)
			}
			if err := render(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "export only this conversation")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file ("-" for stdout, default a dated file name)`)
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
