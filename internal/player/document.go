package player

import (
	"time"

	"rupeeverse/internal/schema"
)

// FinancialView is the typed projection of a document's denormalized balance
// fields. totalWealth is always rupees + bankBalance + stockPortfolioValue.
type FinancialView struct {
	Rupees              float64
	TotalWealth         float64
	BankBalance         float64
	StockPortfolioValue float64
}

// NewDocument builds a current-schema document for a first-time player:
// zeroed financials, all-false onboarding, Maya at the spawn point.
func NewDocument(userID string) map[string]any {
	res := schema.Migrate(map[string]any{
		"userId":             userID,
		"starterClaimed":     false,
		"completedTutorials": []any{},
	})
	doc := res.Migrated
	doc["lastUpdated"] = time.Now().UTC().Format(time.RFC3339)
	return doc
}

// Financial reads the balance fields, tolerating missing or mistyped values.
func Financial(doc map[string]any) FinancialView {
	fin, _ := doc["financial"].(map[string]any)
	return FinancialView{
		Rupees:              numeric(fin, "rupees"),
		TotalWealth:         numeric(fin, "totalWealth"),
		BankBalance:         numeric(fin, "bankBalance"),
		StockPortfolioValue: numeric(fin, "stockPortfolioValue"),
	}
}

func setFinancial(doc map[string]any, rupees, bank, portfolio float64) {
	fin, ok := doc["financial"].(map[string]any)
	if !ok {
		fin = map[string]any{}
		doc["financial"] = fin
	}
	fin["rupees"] = rupees
	fin["bankBalance"] = bank
	fin["stockPortfolioValue"] = portfolio
	fin["totalWealth"] = rupees + bank + portfolio
}

func starterClaimed(doc map[string]any) bool {
	if claimed, _ := doc["starterClaimed"].(bool); claimed {
		return true
	}
	for _, item := range toAnySlice(doc["completedTutorials"]) {
		if s, ok := item.(string); ok && s == schema.StarterMarker {
			return true
		}
	}
	return false
}

// grantStarterDoc applies the starter bonus to a copy of doc: credits the
// wallet, sets the claim flag and the tutorial marker, and unlocks the bank.
// Returns granted=false with the document untouched when the claim is already
// recorded under either name.
func grantStarterDoc(doc map[string]any, amount float64) (map[string]any, bool) {
	if starterClaimed(doc) {
		return doc, false
	}
	next := schema.DeepCopy(doc)
	fin := Financial(next)
	setFinancial(next, fin.Rupees+amount, fin.BankBalance, fin.StockPortfolioValue)
	next["starterClaimed"] = true
	next["completedTutorials"] = append(toAnySlice(next["completedTutorials"]), schema.StarterMarker)
	if ob, ok := next["onboarding"].(map[string]any); ok {
		ob["hasClaimedMoney"] = true
		if ub, ok := ob["unlockedBuildings"].(map[string]any); ok {
			ub["bank"] = true
		}
	}
	return next, true
}

func toAnySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func numeric(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
