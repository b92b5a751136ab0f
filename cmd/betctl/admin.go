package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
)

func (a *app) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "users",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
				users, err := c.GetAdminUsers(ctx)
				if err != nil {
					return err
				}
				tw := newTable(a.out, "ID", "PHONE", "BALANCE", "JOINED")
				for _, u := range users {
					row(tw, u.ID, u.Phone, money(u.Balance), when(u.CreatedAt))
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "withdrawals",
			Short: "List withdrawal requests from all users",
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
				ws, err := c.GetAdminWithdrawals(ctx)
				if err != nil {
					return err
				}
				a.printWithdrawals(ws, true)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set-withdrawal <id> <pending|approved|rejected|paid>",
			Short: "Change a withdrawal's status",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
				switch args[1] {
				case betclient.WithdrawalPending, betclient.WithdrawalApproved,
					betclient.WithdrawalRejected, betclient.WithdrawalPaid:
				default:
					return fmt.Errorf("invalid status %q", args[1])
				}
				r, err := c.UpdateWithdrawalStatus(ctx, betclient.ID(args[0]), args[1])
				if err != nil {
					return err
				}
				a.printReceipt(r, fmt.Sprintf("Withdrawal %s marked %s", args[0], args[1]))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add-balance <user-id> <amount>",
			Short: "Credit a user's balance",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
				amount, err := parseAmount(args[1])
				if err != nil {
					return err
				}
				r, err := c.AdminAddBalance(ctx, betclient.ID(args[0]), amount)
				if err != nil {
					return err
				}
				a.printReceipt(r, fmt.Sprintf("Credited %s to user %s", money(amount), args[0]))
				return nil
			}),
		},
	)
	return cmd
}
