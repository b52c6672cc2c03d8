package schema

import (
	"reflect"
	"testing"
)

func TestIsOutdated(t *testing.T) {
	if !IsOutdated(map[string]any{}) {
		t.Fatalf("document without schemaVersion should be outdated")
	}
	if !IsOutdated(map[string]any{"schemaVersion": 1}) {
		t.Fatalf("version 1 should be outdated")
	}
	if IsOutdated(map[string]any{"schemaVersion": CurrentVersion}) {
		t.Fatalf("current version should not be outdated")
	}
	if IsOutdated(map[string]any{"schemaVersion": float64(CurrentVersion + 1)}) {
		t.Fatalf("future version should not be outdated")
	}
}

func TestMigrateLegacyClaimedUpgrade(t *testing.T) {
	doc := map[string]any{
		"userId":             "u1",
		"completedTutorials": []any{"starter-claimed"},
	}
	res := Migrate(doc)
	if !res.NeedsUpdate {
		t.Fatalf("legacy document should need an update")
	}
	if got := res.Migrated["schemaVersion"]; got != CurrentVersion {
		t.Fatalf("schemaVersion = %v, want %d", got, CurrentVersion)
	}
	ob, ok := res.Migrated["onboarding"].(map[string]any)
	if !ok {
		t.Fatalf("onboarding not synthesized")
	}
	if ob["hasClaimedMoney"] != true {
		t.Fatalf("hasClaimedMoney should be true for legacy-claimed player")
	}
	if ob["onboardingStep"] != StepClaimedMoney {
		t.Fatalf("onboardingStep = %v, want %s", ob["onboardingStep"], StepClaimedMoney)
	}
	ub := ob["unlockedBuildings"].(map[string]any)
	if ub["bank"] != true {
		t.Fatalf("bank should be unlocked for legacy-claimed player")
	}
	pos := ob["mayaPosition"].(map[string]any)
	if pos["x"] != DefaultSpawnPosition.X || pos["y"] != DefaultSpawnPosition.Y {
		t.Fatalf("maya position = %v, want default spawn", pos)
	}
	if res.Migrated["hasCompletedTutorial"] != true {
		t.Fatalf("hasCompletedTutorial should be backfilled true")
	}
	// Input must not be mutated.
	if _, mutated := doc["onboarding"]; mutated {
		t.Fatalf("migrate mutated the caller's document")
	}
}

func TestMigrateLegacyClaimedWithBankProgress(t *testing.T) {
	doc := map[string]any{
		"starterClaimed": true,
		"onboarding": map[string]any{
			"hasCompletedBankOnboarding": true,
		},
	}
	res := Migrate(doc)
	ob := res.Migrated["onboarding"].(map[string]any)
	pos := ob["mayaPosition"].(map[string]any)
	if pos["x"] != BankPosition.X || pos["y"] != BankPosition.Y {
		t.Fatalf("maya position = %v, want bank position", pos)
	}
	// Duplicate flag must follow the canonical one.
	if ob["bankOnboardingComplete"] != true {
		t.Fatalf("bankOnboardingComplete should mirror hasCompletedBankOnboarding")
	}
	if ob["hasClaimedMoney"] != true {
		t.Fatalf("legacy claim should be reapplied to existing onboarding")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"completedTutorials": []any{"starter-claimed"}},
		{"schemaVersion": 1, "onboarding": map[string]any{"hasMetMaya": true}},
		{
			"starterClaimed": true,
			"onboarding": map[string]any{
				"hasReachedStockMarket": true,
				"onboardingStep":        StepReachedStockMarket,
			},
		},
	}
	for i, doc := range inputs {
		first := Migrate(doc)
		second := Migrate(first.Migrated)
		if second.NeedsUpdate {
			t.Fatalf("case %d: second pass should be a no-op, changes: %v", i, second.Changes)
		}
		if !reflect.DeepEqual(first.Migrated, second.Migrated) {
			t.Fatalf("case %d: second pass altered the document", i)
		}
	}
}

func TestMigrateNeverRegressesStep(t *testing.T) {
	doc := map[string]any{
		"starterClaimed": true,
		"onboarding": map[string]any{
			"onboardingStep":        StepReachedStockMarket,
			"hasReachedStockMarket": true,
		},
	}
	res := Migrate(doc)
	ob := res.Migrated["onboarding"].(map[string]any)
	if ob["onboardingStep"] != StepReachedStockMarket {
		t.Fatalf("onboardingStep regressed to %v", ob["onboardingStep"])
	}
	pos := ob["mayaPosition"].(map[string]any)
	if pos["x"] != StockMarketPosition.X {
		t.Fatalf("maya should be at the stock market, got %v", pos)
	}
}

func TestMigrateSynchronizesCompletionPairs(t *testing.T) {
	doc := map[string]any{
		"onboarding": map[string]any{
			"hasCompletedBankOnboarding":    false,
			"bankOnboardingComplete":        true,
			"hasReachedStockMarket":         true,
			"stockMarketOnboardingComplete": false,
		},
	}
	res := Migrate(doc)
	ob := res.Migrated["onboarding"].(map[string]any)
	for _, key := range []string{
		"hasCompletedBankOnboarding",
		"bankOnboardingComplete",
		"hasReachedStockMarket",
		"stockMarketOnboardingComplete",
	} {
		if ob[key] != true {
			t.Fatalf("%s should be true after reconciliation", key)
		}
	}
}

func TestMigrateBackfillsUnlocks(t *testing.T) {
	doc := map[string]any{
		"onboarding": map[string]any{
			"hasClaimedMoney":            true,
			"hasCompletedBankOnboarding": true,
			"hasReachedStockMarket":      true,
		},
	}
	res := Migrate(doc)
	ob := res.Migrated["onboarding"].(map[string]any)
	ub := ob["unlockedBuildings"].(map[string]any)
	for _, b := range []string{"bank", "atm", "stockmarket"} {
		if ub[b] != true {
			t.Fatalf("building %s should be unlocked", b)
		}
	}
}

func TestMigrateNeverPanicsOnGarbage(t *testing.T) {
	inputs := []map[string]any{
		nil,
		{"onboarding": "not a map"},
		{"onboarding": map[string]any{"unlockedBuildings": 7, "mayaPosition": "x"}},
		{"schemaVersion": "two", "completedTutorials": 9},
		{"financial": []any{1, 2}},
	}
	for i, doc := range inputs {
		res := Migrate(doc)
		if res.Migrated == nil {
			t.Fatalf("case %d: migrated document is nil", i)
		}
	}
}

func TestValidate(t *testing.T) {
	res := Migrate(map[string]any{"completedTutorials": []any{"starter-claimed"}})
	if !Validate(res.Migrated) {
		t.Fatalf("freshly migrated document should validate")
	}

	broken := DeepCopy(res.Migrated)
	ob := broken["onboarding"].(map[string]any)
	delete(ob, "bankOnboardingComplete")
	if Validate(broken) {
		t.Fatalf("document missing a duplicate flag should fail validation")
	}

	broken = DeepCopy(res.Migrated)
	ob = broken["onboarding"].(map[string]any)
	ob["mayaPosition"] = map[string]any{"x": "east", "y": 12}
	if Validate(broken) {
		t.Fatalf("non-numeric maya position should fail validation")
	}

	if Validate(nil) {
		t.Fatalf("nil document should fail validation")
	}
}

func TestCheckConsistency(t *testing.T) {
	holdings := []HoldingCheck{
		{Symbol: "MAZE", Quantity: 10, TotalValue: 1200},
		{Symbol: "RICKSHAW", Quantity: 5, TotalValue: 800},
	}
	if v := CheckConsistency(100, 500, holdings, 2000); len(v) != 0 {
		t.Fatalf("expected consistent state, got %v", v)
	}
	if v := CheckConsistency(-1, 500, holdings, 2000); len(v) != 1 {
		t.Fatalf("expected negative rupees violation, got %v", v)
	}
	if v := CheckConsistency(0, 0, holdings, 1500); len(v) != 1 {
		t.Fatalf("expected aggregate mismatch violation, got %v", v)
	}
	bad := append(holdings, HoldingCheck{Symbol: "GHOST", Quantity: 0, TotalValue: 0})
	if v := CheckConsistency(0, 0, bad, 2000); len(v) != 1 {
		t.Fatalf("expected zero-quantity violation, got %v", v)
	}
}
