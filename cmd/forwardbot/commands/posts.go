package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
)

func newPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Inspect and cancel stored scheduled posts",
	}
	cmd.AddCommand(newPostsListCmd(), newPostsCancelCmd())
	return cmd
}

func newPostsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled posts ordered by delivery time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			posts, err := st.ListPosts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(posts) == 0 {
				printWarning(out, "no scheduled posts")
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME (IST)\tWHEN\tCHANNELS\tMESSAGES")
			for _, p := range posts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					cyan.Sprint(p.ID),
					post.FormatIST(p.ScheduleTime),
					humanize.RelTime(p.ScheduleTime, now, "ago", "from now"),
					len(p.Channels),
					len(p.Messages),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			faint.Fprintf(out, "%d post(s)\n", len(posts))
			return nil
		},
	}
}

func newPostsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <post_id>",
		Short: "Delete a stored post; a running bot skips it when its timer fires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			_, ok, err := st.GetPost(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no scheduled post %q", id)
			}
			if err := st.DeletePost(cmd.Context(), id); err != nil {
				return err
			}
			_ = st.AppendAudit(cmd.Context(), storage.AuditEntry{At: time.Now(), Action: "cancel_offline", PostID: id})
			printSuccess(cmd.OutOrStdout(), "cancelled %s", id)
			return nil
		},
	}
}
