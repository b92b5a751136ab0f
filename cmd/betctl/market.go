package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
)

func (a *app) electionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "elections",
		Short: "List elections and candidate odds",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			elections, err := c.GetElections(ctx)
			if err != nil {
				return err
			}
			if len(elections) == 0 {
				fmt.Fprintln(a.out, "No elections")
				return nil
			}
			for i, e := range elections {
				if i > 0 {
					fmt.Fprintln(a.out)
				}
				fmt.Fprintf(a.out, "%s [%s] %s\n", e.ID, e.Type, e.Title)
				cands := append([]betclient.Candidate(nil), e.Candidates...)
				sort.SliceStable(cands, func(i, j int) bool { return cands[i].Odds < cands[j].Odds })
				tw := newTable(a.out, "  ID", "CANDIDATE", "PARTY", "ODDS")
				for _, cand := range cands {
					row(tw, "  "+string(cand.ID), cand.Name, cand.Party, fmt.Sprintf("%.2f", cand.Odds))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func (a *app) mpesaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mpesa",
		Short: "M-Pesa deposits",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pay <phone> <amount>",
			Short: "Start an M-Pesa STK push deposit",
			Args:  cobra.ExactArgs(2),
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
				amount, err := parseAmount(args[1])
				if err != nil {
					return err
				}
				res, err := c.MpesaPayment(ctx, args[0], amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Payment of %s started, checkout %s\n", money(amount), res.CheckoutRequestID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status <checkout-id>",
			Short: "Check an M-Pesa payment",
			Args:  cobra.ExactArgs(1),
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, args []string) error {
				st, err := c.CheckMpesaStatus(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Status: %s\n", st.Status)
				if st.ResultDesc != "" {
					fmt.Fprintf(a.out, "Detail: %s\n", st.ResultDesc)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "transactions",
			Short: "List M-Pesa transactions (admin)",
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
				txs, err := c.GetMpesaTransactions(ctx)
				if err != nil {
					return err
				}
				if len(txs) == 0 {
					fmt.Fprintln(a.out, "No transactions")
					return nil
				}
				tw := newTable(a.out, "ID", "PHONE", "AMOUNT", "STATUS", "RECEIPT", "CREATED")
				for _, tx := range txs {
					row(tw, tx.ID, tx.Phone, money(tx.Amount), tx.Status, tx.ReceiptNumber, when(tx.CreatedAt))
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Settle pending M-Pesa transactions (admin)",
			Args:  cobra.NoArgs,
			RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
				r, err := c.ReconcileMpesa(ctx)
				if err != nil {
					return err
				}
				a.printReceipt(r, "Pending transactions reconciled")
				return nil
			}),
		},
	)
	return cmd
}

func (a *app) printReceipt(r *betclient.Receipt, fallback string) {
	msg := r.Message
	if msg == "" {
		msg = fallback
	}
	fmt.Fprintln(a.out, msg)
	if r.NewBalance != nil {
		fmt.Fprintf(a.out, "Balance: %s\n", money(*r.NewBalance))
	}
}
