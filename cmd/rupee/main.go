package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cl "rupeeverse/internal/cli"
	"rupeeverse/internal/config"
	"rupeeverse/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "rupee",
		Short:        "Rupeeverse economy client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newStatusCmd(&apiBase),
		newClaimStarterCmd(&apiBase),
		newBankCmd(&apiBase),
		newFDCmd(&apiBase),
		newStocksCmd(&apiBase),
		newCheckCmd(&apiBase),
		newReplayCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `rupee login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login and store a local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wallet, bank, deposits, and portfolio in one view",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Sync(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderStatus(out)
		},
	}
}

func newClaimStarterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "claim-starter",
		Short: "Claim the one-time starter bonus",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ClaimStarter(ctx, sess.AccessToken, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/player-state/claim-starter",
					Body:           map[string]any{},
					IdempotencyKey: idem,
				})
			}
			return renderStarterGrant(out)
		},
	}
}

func newBankCmd(apiBase *string) *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Bank account commands",
	}

	bank.AddCommand(&cobra.Command{
		Use:   "open [holder-name]",
		Short: "Open your bank account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			holder := ""
			if len(args) > 0 {
				holder = strings.TrimSpace(args[0])
			} else {
				holder, err = promptRequired("Account holder name")
				if err != nil {
					return err
				}
			}
			initial, err := promptAmount("Initial deposit (0 for none)", -0.01)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := map[string]any{"accountHolder": holder, "initialDeposit": initial}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateBankAccount(ctx, sess.AccessToken, holder, initial, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/bank-account/create",
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			return renderBankAccount(out, "Bank account opened.")
		},
	})

	bank.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show balance and recent transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).BankAccount(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderBankAccount(out, "")
		},
	})

	bank.AddCommand(newBankMoveCmd(apiBase, "deposit", "Move rupees from wallet into the bank", "/v1/bank-account/deposit"))
	bank.AddCommand(newBankMoveCmd(apiBase, "withdraw", "Move rupees from the bank back to wallet", "/v1/bank-account/withdraw"))
	return bank
}

func newBankMoveCmd(apiBase *string, verb, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [amount]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			amount, err := amountFromArgsOrPrompt(args, "Amount")
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := map[string]any{"amount": amount}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var out map[string]any
			if verb == "deposit" {
				out, err = client.Deposit(ctx, sess.AccessToken, amount, idem)
			} else {
				out, err = client.Withdraw(ctx, sess.AccessToken, amount, idem)
			}
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           path,
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			done := "Deposited " + formatRupees(amount) + "."
			if verb == "withdraw" {
				done = "Withdrew " + formatRupees(amount) + "."
			}
			return renderBankAccount(out, done)
		},
	}
}

func newFDCmd(apiBase *string) *cobra.Command {
	fd := &cobra.Command{
		Use:   "fd",
		Short: "Fixed deposit commands",
	}

	fd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Lock bank funds into a fixed deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			amount, err := promptAmount("Amount", 0)
			if err != nil {
				return err
			}
			days, err := promptInt64("Duration (days)", 1)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := map[string]any{"amount": amount, "duration": days}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateFixedDeposit(ctx, sess.AccessToken, amount, int(days), idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/fixed-deposits",
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			return renderFixedDeposit(out)
		},
	})

	fd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your fixed deposits",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListFixedDeposits(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderFixedDeposits(out)
		},
	})

	fd.AddCommand(&cobra.Command{
		Use:   "claim [deposit-id]",
		Short: "Claim a matured fixed deposit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			depositID := ""
			if len(args) > 0 {
				depositID = strings.TrimSpace(args[0])
			} else {
				depositID, err = promptRequired("Deposit ID")
				if err != nil {
					return err
				}
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ClaimFixedDeposit(ctx, sess.AccessToken, depositID, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/fixed-deposits/" + depositID + "/claim",
					Body:           map[string]any{},
					IdempotencyKey: idem,
				})
			}
			return renderFDClaim(out)
		},
	})
	return fd
}

func newStocksCmd(apiBase *string) *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Stock portfolio commands",
		Aliases: []string{"stock"},
	}

	stocks.AddCommand(&cobra.Command{
		Use:   "portfolio",
		Short: "Show your holdings and aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Portfolio(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderPortfolio(out)
		},
	})

	stocks.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Show your trade ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).StockTransactions(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderStockTransactions(out)
		},
	})

	stocks.AddCommand(&cobra.Command{
		Use:   "buy [stock-id]",
		Short: "Buy shares at a given price",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			stockID, err := stockIDFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			name, err := promptOptional("Stock name (optional)")
			if err != nil {
				return err
			}
			if name == "" {
				name = stockID
			}
			qty, err := promptInt64("Quantity", 1)
			if err != nil {
				return err
			}
			price, err := promptAmount("Price per share", 0)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := map[string]any{"stockId": stockID, "stockName": name, "quantity": qty, "price": price}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).BuyStock(ctx, sess.AccessToken, stockID, name, qty, price, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/stock-portfolio/buy",
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			return renderTradeResult(out, "buy", stockID, qty)
		},
	})

	stocks.AddCommand(&cobra.Command{
		Use:   "sell [stock-id]",
		Short: "Sell shares at a given price",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			stockID, err := stockIDFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			qty, err := promptInt64("Quantity", 1)
			if err != nil {
				return err
			}
			price, err := promptAmount("Price per share", 0)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			body := map[string]any{"stockId": stockID, "quantity": qty, "price": price}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SellStock(ctx, sess.AccessToken, stockID, qty, price, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/stock-portfolio/sell",
					Body:           body,
					IdempotencyKey: idem,
				})
			}
			return renderTradeResult(out, "sell", stockID, qty)
		},
	})
	return stocks
}

func newCheckCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the balance consistency check",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Consistency(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderConsistency(out)
		},
	}
}

func newReplayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay queued offline writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Replay queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.Command, 0, len(queue))
			replayed := 0
			for _, q := range queue {
				if _, err := client.Do(ctx, q.Method, q.Path, sess.AccessToken, q.Body, q.IdempotencyKey); err != nil {
					remaining = append(remaining, q)
					printError(fmt.Sprintf("Replay failed for %s %s: %v", q.Method, q.Path, err))
					continue
				}
				replayed++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Replay complete: replayed=%d remaining=%d", replayed, len(remaining)))
			return nil
		},
	}
}

// queueOnNetworkError pushes a failed mutating command for later replay when
// the API was unreachable; structured API rejections are surfaced as-is.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "api status") {
		return err
	}
	if qErr := syncq.Push(cmd); qErr != nil {
		return fmt.Errorf("request failed (%v) and queueing failed: %w", err, qErr)
	}
	printWarn(fmt.Sprintf("API unreachable; command queued for `rupee replay` (%s %s).", cmd.Method, cmd.Path))
	return nil
}

func stockIDFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		id := strings.ToUpper(strings.TrimSpace(args[0]))
		if id == "" {
			return "", fmt.Errorf("stock id is required")
		}
		return id, nil
	}
	id, err := promptRequired("Stock ID")
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(id)), nil
}

func amountFromArgsOrPrompt(args []string, label string) (float64, error) {
	if len(args) > 0 {
		v, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptAmount(label, 0)
}
