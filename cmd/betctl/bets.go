package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
)

func (a *app) betsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bets",
		Short: "Place bets and show bet history",
	}
	cmd.AddCommand(a.placeBetCmd(), a.jackpotBetCmd(), a.betHistoryCmd())
	return cmd
}

func (a *app) placeBetCmd() *cobra.Command {
	var (
		stake string
		picks []string
	)
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place an accumulator bet",
		Long: `Place an accumulator bet. Every --pick is "<candidate>=<odds>":

  betctl bets place --stake 5000 --pick "Candidate A=1.45" --pick "Candidate B=2.8"`,
		Args: cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			amount, err := parseAmount(stake)
			if err != nil {
				return err
			}
			bet := betclient.BetPayload{Stake: amount}
			for _, p := range picks {
				sel, err := parsePick(p)
				if err != nil {
					return err
				}
				bet.Selections = append(bet.Selections, sel)
			}
			r, err := c.PlaceBet(ctx, bet)
			if err != nil {
				return err
			}
			a.printBetReceipt(r, bet, false)
			return nil
		}),
	}
	cmd.Flags().StringVar(&stake, "stake", "", "stake in UGX")
	cmd.Flags().StringArrayVar(&picks, "pick", nil, `selection as "<candidate>=<odds>" (repeatable)`)
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("pick")
	return cmd
}

func (a *app) jackpotBetCmd() *cobra.Command {
	var (
		stake string
		picks []string
	)
	cmd := &cobra.Command{
		Use:   "jackpot",
		Short: "Place a jackpot bet",
		Long: `Place a jackpot bet with one pick per race. Every --pick is "<race>:<candidate>":

  betctl bets jackpot --stake 1000 --pick "Kampala Central:Candidate A" --pick "Wakiso:Candidate C"`,
		Args: cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			amount, err := parseAmount(stake)
			if err != nil {
				return err
			}
			sels := make([]betclient.JackpotSelection, 0, len(picks))
			for _, p := range picks {
				race, cand, ok := strings.Cut(p, ":")
				if !ok || strings.TrimSpace(race) == "" || strings.TrimSpace(cand) == "" {
					return fmt.Errorf("invalid jackpot pick %q: want \"<race>:<candidate>\"", p)
				}
				sels = append(sels, betclient.JackpotSelection{Race: strings.TrimSpace(race), Candidate: strings.TrimSpace(cand)})
			}
			bet := betclient.NewJackpotBet(amount, sels)
			r, err := c.PlaceJackpotBet(ctx, bet)
			if err != nil {
				return err
			}
			a.printBetReceipt(r, bet, true)
			return nil
		}),
	}
	cmd.Flags().StringVar(&stake, "stake", "", "stake in UGX")
	cmd.Flags().StringArrayVar(&picks, "pick", nil, `pick as "<race>:<candidate>" (repeatable)`)
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("pick")
	return cmd
}

func parsePick(s string) (betclient.BetSelection, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return betclient.BetSelection{}, fmt.Errorf("invalid pick %q: want \"<candidate>=<odds>\"", s)
	}
	odds, err := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
	if err != nil || odds < 1 {
		return betclient.BetSelection{}, fmt.Errorf("invalid odds in pick %q", s)
	}
	return betclient.BetSelection{Candidate: strings.TrimSpace(s[:i]), Odds: odds}, nil
}

func (a *app) printBetReceipt(r *betclient.BetReceipt, bet betclient.BetPayload, jackpot bool) {
	fmt.Fprintf(a.out, "Bet %s placed: stake %s", r.BetID, money(bet.Stake))
	if !jackpot {
		fmt.Fprintf(a.out, ", odds %.2f, possible win %s", bet.TotalOdds(), money(bet.PossibleWin()))
	}
	fmt.Fprintln(a.out)
	if r.NewBalance != nil {
		fmt.Fprintf(a.out, "Balance: %s\n", money(*r.NewBalance))
	}
}

func (a *app) betHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your bets",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(ctx context.Context, c *betclient.Client, _ []string) error {
			bets, err := c.GetBetHistory(ctx)
			if err != nil {
				return err
			}
			if len(bets) == 0 {
				fmt.Fprintln(a.out, "No bets")
				return nil
			}
			tw := newTable(a.out, "ID", "TYPE", "STAKE", "ODDS", "POSSIBLE WIN", "STATUS", "PLACED")
			for _, b := range bets {
				kind := "multi"
				if b.IsJackpot() {
					kind = "jackpot"
				}
				row(tw, b.ID, kind, money(b.Stake), fmt.Sprintf("%.2f", b.TotalOdds), money(b.PossibleWin), b.Status, when(b.CreatedAt))
			}
			return tw.Flush()
		}),
	}
}
