package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type bankAccountView struct {
	ID            string    `json:"id"`
	AccountHolder string    `json:"accountHolder"`
	Balance       float64   `json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
	Transactions  []struct {
		Type        string    `json:"type"`
		Amount      float64   `json:"amount"`
		Description string    `json:"description"`
		Timestamp   time.Time `json:"timestamp"`
	} `json:"transactions"`
}

type fixedDepositView struct {
	ID           string    `json:"id"`
	Amount       float64   `json:"amount"`
	InterestRate float64   `json:"interestRate"`
	DurationDays int       `json:"duration"`
	MaturityDate time.Time `json:"maturityDate"`
	Status       string    `json:"status"`
}

type fixedDepositsPayload struct {
	FixedDeposits []fixedDepositView `json:"fixedDeposits"`
}

type holdingView struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Quantity           int64   `json:"quantity"`
	AveragePrice       float64 `json:"averagePrice"`
	CurrentPrice       float64 `json:"currentPrice"`
	TotalValue         float64 `json:"totalValue"`
	GainLoss           float64 `json:"gainLoss"`
	GainLossPercentage float64 `json:"gainLossPercentage"`
}

type portfolioView struct {
	Holdings      []holdingView `json:"holdings"`
	TotalValue    float64       `json:"totalValue"`
	TotalInvested float64       `json:"totalInvested"`
	TotalGainLoss float64       `json:"totalGainLoss"`
}

type stockTransactionView struct {
	StockID   string    `json:"stockId"`
	StockName string    `json:"stockName"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Total     float64   `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

type transactionsPayload struct {
	Transactions []stockTransactionView `json:"transactions"`
}

type starterGrantView struct {
	NewlyGranted bool    `json:"newlyGranted"`
	Amount       float64 `json:"amount"`
	Rupees       float64 `json:"rupees"`
}

type fdClaimView struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
}

type tradeResultView struct {
	Portfolio portfolioView `json:"portfolio"`
	Rupees    float64       `json:"rupees"`
	Profit    *float64      `json:"profit"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptAmount(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v <= min {
			printWarn(fmt.Sprintf("Value must be > %.2f", min))
			continue
		}
		return v, nil
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderStatus(raw map[string]any) error {
	accent.Println("== Rupeeverse ==")

	if state, ok := raw["playerState"].(map[string]any); ok {
		if fin, ok := state["financial"].(map[string]any); ok {
			fmt.Printf("Wallet:     %s\n", formatRupees(number(fin["rupees"])))
			fmt.Printf("Bank:       %s\n", formatRupees(number(fin["bankBalance"])))
			fmt.Printf("Stocks:     %s\n", formatRupees(number(fin["stockPortfolioValue"])))
			fmt.Printf("Net worth:  %s\n", formatRupees(number(fin["totalWealth"])))
		}
		if ob, ok := state["onboarding"].(map[string]any); ok {
			if step, ok := ob["onboardingStep"].(string); ok {
				fmt.Printf("Progress:   %s\n", step)
			}
		}
	}
	if claimed, ok := raw["starterClaimed"].(bool); ok && !claimed {
		printInfo("Starter bonus unclaimed. Run `rupee claim-starter`.")
	}

	if deposits, ok := raw["fixedDeposits"].([]any); ok && len(deposits) > 0 {
		fmt.Printf("Fixed deposits: %d\n", len(deposits))
	}
	return nil
}

func renderStarterGrant(raw map[string]any) error {
	grant, err := decodeInto[starterGrantView](raw)
	if err != nil {
		return err
	}
	if grant.NewlyGranted {
		printSuccess(fmt.Sprintf("Starter bonus of %s granted. Wallet: %s", formatRupees(grant.Amount), formatRupees(grant.Rupees)))
	} else {
		printWarn(fmt.Sprintf("Starter bonus already claimed. Wallet: %s", formatRupees(grant.Rupees)))
	}
	return nil
}

func renderBankAccount(raw map[string]any, successMessage string) error {
	account, err := decodeInto[bankAccountView](raw)
	if err != nil {
		return err
	}
	if successMessage != "" {
		printSuccess(successMessage)
	}
	accent.Printf("Account: %s\n", account.AccountHolder)
	fmt.Printf("Balance: %s\n", formatRupees(account.Balance))
	if len(account.Transactions) > 0 {
		neutral.Println("Recent transactions:")
		limit := len(account.Transactions)
		if limit > 10 {
			limit = 10
		}
		for _, tx := range account.Transactions[:limit] {
			fmt.Printf("  %-10s %12s  %s  %s\n",
				tx.Type, formatRupees(tx.Amount), tx.Timestamp.Local().Format("2006-01-02 15:04"), tx.Description)
		}
	}
	return nil
}

func renderFixedDeposit(raw map[string]any) error {
	fd, err := decodeInto[fixedDepositView](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Fixed deposit created: %s for %d days @ %.1f%%.",
		formatRupees(fd.Amount), fd.DurationDays, fd.InterestRate))
	fmt.Printf("ID:       %s\n", fd.ID)
	fmt.Printf("Matures:  %s\n", fd.MaturityDate.Local().Format("2006-01-02"))
	return nil
}

func renderFixedDeposits(raw map[string]any) error {
	payload, err := decodeInto[fixedDepositsPayload](raw)
	if err != nil {
		return err
	}
	if len(payload.FixedDeposits) == 0 {
		printInfo("No fixed deposits.")
		return nil
	}
	accent.Println("Fixed deposits:")
	for _, fd := range payload.FixedDeposits {
		fmt.Printf("  %-36s %12s  %4dd @ %.1f%%  %-8s matures %s\n",
			fd.ID, formatRupees(fd.Amount), fd.DurationDays, fd.InterestRate,
			fd.Status, fd.MaturityDate.Local().Format("2006-01-02"))
	}
	return nil
}

func renderFDClaim(raw map[string]any) error {
	claim, err := decodeInto[fdClaimView](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Claimed: %s principal + %s interest = %s.",
		formatRupees(claim.Principal), formatRupees(claim.Interest), formatRupees(claim.Total)))
	return nil
}

func renderPortfolio(raw map[string]any) error {
	pf, err := decodeInto[portfolioView](raw)
	if err != nil {
		return err
	}
	accent.Println("Portfolio:")
	if len(pf.Holdings) == 0 {
		printInfo("No holdings.")
	}
	for _, h := range pf.Holdings {
		fmt.Printf("  %-8s %6d @ %10s  value %12s  %s\n",
			h.Symbol, h.Quantity, formatRupees(h.AveragePrice), formatRupees(h.TotalValue),
			colorizeGain(h.GainLoss, h.GainLossPercentage))
	}
	fmt.Printf("Invested: %s  Value: %s  Net: %s\n",
		formatRupees(pf.TotalInvested), formatRupees(pf.TotalValue), signedRupees(pf.TotalGainLoss))
	return nil
}

func renderStockTransactions(raw map[string]any) error {
	payload, err := decodeInto[transactionsPayload](raw)
	if err != nil {
		return err
	}
	if len(payload.Transactions) == 0 {
		printInfo("No trades yet.")
		return nil
	}
	accent.Println("Trade history:")
	for _, tx := range payload.Transactions {
		fmt.Printf("  %-4s %-8s %6d @ %10s = %12s  %s\n",
			tx.Type, tx.StockID, tx.Quantity, formatRupees(tx.Price), formatRupees(tx.Total),
			tx.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func renderTradeResult(raw map[string]any, side, stockID string, qty int64) error {
	result, err := decodeInto[tradeResultView](raw)
	if err != nil {
		return err
	}
	switch side {
	case "buy":
		printSuccess(fmt.Sprintf("Bought %d %s. Wallet: %s", qty, stockID, formatRupees(result.Rupees)))
	default:
		msg := fmt.Sprintf("Sold %d %s. Wallet: %s", qty, stockID, formatRupees(result.Rupees))
		if result.Profit != nil {
			msg += fmt.Sprintf("  Profit: %s", signedRupees(*result.Profit))
		}
		printSuccess(msg)
	}
	fmt.Printf("Portfolio value: %s\n", formatRupees(result.Portfolio.TotalValue))
	return nil
}

func renderConsistency(raw map[string]any) error {
	consistent, _ := raw["consistent"].(bool)
	if consistent {
		printSuccess("Balances are consistent.")
		return nil
	}
	printError("Consistency violations found:")
	if violations, ok := raw["violations"].([]any); ok {
		for _, v := range violations {
			fmt.Printf("  - %v\n", v)
		}
	}
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

func formatRupees(v float64) string {
	return fmt.Sprintf("₹%.2f", v)
}

func signedRupees(v float64) string {
	if v >= 0 {
		return success.Sprintf("+%s", formatRupees(v))
	}
	return danger.Sprintf("-%s", formatRupees(-v))
}

func colorizeGain(gain, pct float64) string {
	if gain >= 0 {
		return success.Sprintf("+%.2f (%.1f%%)", gain, pct)
	}
	return danger.Sprintf("%.2f (%.1f%%)", gain, pct)
}
