package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
)

func (a *app) loginCmd() *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "login <phone>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
			res, err := c.LoginUser(ctx, args[0], pin)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (balance %s)\n", res.User.Phone, money(res.User.Balance))
			return nil
		}),
	}
	cmd.Flags().StringVar(&pin, "pin", "", "account PIN")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var pin, referral string
	cmd := &cobra.Command{
		Use:   "register <phone>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
			res, err := c.RegisterUser(ctx, args[0], pin, referral)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s (balance %s)\n", res.User.Phone, money(res.User.Balance))
			if res.User.ReferralCode != "" {
				fmt.Fprintf(a.out, "Your referral code: %s\n", res.User.ReferralCode)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&pin, "pin", "", "account PIN")
	cmd.Flags().StringVar(&referral, "referral", "", "referral code of the inviting user")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			if err := c.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		}),
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			b, err := c.GetBalance(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Balance: %s\n", money(b.Balance))
			if b.BonusBalance > 0 {
				fmt.Fprintf(a.out, "Bonus:   %s\n", money(b.BonusBalance))
			}
			return nil
		}),
	}
}

func (a *app) withdrawCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Request a mobile money withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			r, err := c.Withdraw(ctx, amount, method)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Withdrawal of %s requested", money(amount))
			if r.NewBalance != nil {
				fmt.Fprintf(a.out, " (balance %s)", money(*r.NewBalance))
			}
			fmt.Fprintln(a.out)
			return nil
		}),
	}
	cmd.Flags().StringVar(&method, "method", betclient.WithdrawMTN, "payout network: MTN or Airtel")
	return cmd
}

func (a *app) withdrawalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdrawals",
		Short: "List your withdrawals",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			ws, err := c.GetWithdrawalHistory(ctx)
			if err != nil {
				return err
			}
			a.printWithdrawals(ws, false)
			return nil
		}),
	}
}

func (a *app) printWithdrawals(ws []betclient.Withdrawal, withPhone bool) {
	if len(ws) == 0 {
		fmt.Fprintln(a.out, "No withdrawals")
		return
	}
	header := []string{"ID", "AMOUNT", "METHOD", "STATUS", "REQUESTED"}
	if withPhone {
		header = append([]string{"ID", "PHONE"}, header[1:]...)
	}
	tw := newTable(a.out, header...)
	for _, w := range ws {
		if withPhone {
			row(tw, w.ID, w.Phone, money(w.Amount), w.Method, w.Status, when(w.CreatedAt))
		} else {
			row(tw, w.ID, money(w.Amount), w.Method, w.Status, when(w.CreatedAt))
		}
	}
	_ = tw.Flush()
}

func (a *app) referralsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "referrals",
		Short: "Show referral statistics",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			s, err := c.GetReferralStats(ctx)
			if err != nil {
				return err
			}
			if s.ReferralCode != "" {
				fmt.Fprintf(a.out, "Code:      %s\n", s.ReferralCode)
			}
			fmt.Fprintf(a.out, "Referrals: %d\n", s.TotalReferrals)
			fmt.Fprintf(a.out, "Earned:    %s\n", money(s.TotalEarned))
			return nil
		}),
	}
}
