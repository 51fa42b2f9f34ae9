package main

import (
	"github.com/spf13/cobra"

	"github.com/rushteam/recflow/service"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var req service.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store recommendations for one user",
		Example: `  recflow generate --user u1
  recflow generate --user u1 --limit 10 --algorithm trending --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.generator.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "User ID (required)")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "Number of recommendations (default 5, max 50)")
	cmd.Flags().StringVar(&req.Algorithm, "algorithm", "", "content, collaborative, trending or hybrid (default from config)")
	cmd.Flags().BoolVar(&req.SendNotification, "notify", false, "Send a push notification when the user has a push target")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var req service.BatchRequest
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate recommendations for every eligible user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			orchestrator, err := a.batch()
			if err != nil {
				return err
			}
			result, err := orchestrator.Run(cmd.Context(), req)
			if result != nil {
				if werr := opts.writeJSON(cmd.OutOrStdout(), result); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&req.MaxUsers, "max-users", 0, "Maximum number of users to process (default from config)")
	cmd.Flags().StringVar(&req.Algorithm, "algorithm", "", "content, collaborative, trending or hybrid (default from config)")
	cmd.Flags().BoolVar(&req.SendNotifications, "notify", false, "Send push notifications")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var req service.HistoryRequest
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored recommendations and recent batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.history.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			return opts.writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "Only show this user")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "Maximum number of recommendation sets (default 100)")
	return cmd
}

func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}
