package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/requests"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage booking requests (non-chat)",
	}
	cmd.AddCommand(newRequestCreateCmd())
	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestCancelCmd())
	return cmd
}

func withRepo(fn func(ctx context.Context, cfg config.Config, repo *requests.Repo) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.Background()
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := migrate.Up(ctx, d); err != nil {
			return err
		}
		return fn(ctx, cfg, requests.NewRepo(d))
	}
}

func newRequestCreateCmd() *cobra.Command {
	var (
		owner    string
		chatID   string
		date     string
		timeStr  string
		court    string
		duration int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a booking request",
		RunE: withRepo(func(ctx context.Context, cfg config.Config, repo *requests.Repo) error {
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			r, err := requests.New(owner, chatID, date, timeStr, court, duration, loc, time.Now())
			if err != nil {
				return err
			}
			id, err := repo.Create(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created request id=%d eligible_at=%s\n",
				id, r.EligibleAt.Format(time.RFC3339))
			return nil
		}),
	}

	c.Flags().StringVar(&owner, "owner", "", "owner id")
	c.Flags().StringVar(&chatID, "chat-id", "", "telegram chat id for notifications")
	c.Flags().StringVar(&date, "date", "", "target date YYYY-MM-DD")
	c.Flags().StringVar(&timeStr, "time", "", "target time HH:MM")
	c.Flags().StringVar(&court, "court", "", "preferred court (optional)")
	c.Flags().IntVar(&duration, "duration", 0, "slot duration minutes (default 90)")

	_ = c.MarkFlagRequired("owner")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func newRequestListCmd() *cobra.Command {
	var owner string
	c := &cobra.Command{
		Use:   "list",
		Short: "List requests for an owner",
		RunE: withRepo(func(ctx context.Context, cfg config.Config, repo *requests.Repo) error {
			rs, err := repo.ListByOwner(ctx, owner)
			if err != nil {
				return err
			}
			for _, r := range rs {
				fmt.Fprintf(os.Stdout, "id=%d status=%s slot=%s %s court=%q eligible_at=%s detail=%q\n",
					r.ID, r.Status, r.TargetDate.Format("2006-01-02"), r.TargetTime, r.Court,
					r.EligibleAt.Format(time.RFC3339), r.ResultDetail)
			}
			return nil
		}),
	}
	c.Flags().StringVar(&owner, "owner", "", "owner id")
	_ = c.MarkFlagRequired("owner")
	return c
}

func newRequestCancelCmd() *cobra.Command {
	var (
		owner string
		id    int64
	)
	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a pending request",
		RunE: withRepo(func(ctx context.Context, cfg config.Config, repo *requests.Repo) error {
			if err := repo.Cancel(ctx, id, owner); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "cancelled request id=%d\n", id)
			return nil
		}),
	}
	c.Flags().StringVar(&owner, "owner", "", "owner id")
	c.Flags().Int64Var(&id, "id", 0, "request id")
	_ = c.MarkFlagRequired("owner")
	_ = c.MarkFlagRequired("id")
	return c
}
