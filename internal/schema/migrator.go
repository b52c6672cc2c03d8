// Package schema upgrades persisted player documents across schema
// generations. All functions here are pure: they take an in-memory document,
// never touch storage, and never panic on malformed input. The store decides
// when to persist the migrated result.
package schema

import "fmt"

// CurrentVersion is the schema generation the migrator produces.
const CurrentVersion = 2

// StarterMarker is the completed-tutorials entry written by the starter grant.
const StarterMarker = "starter-claimed"

// Maya guide coordinates. Exactly one of these is chosen when a document has
// no position; there is no interpolation between them.
var (
	DefaultSpawnPosition = Position{X: 7779, Y: 3581}
	BankPosition         = Position{X: 9415, Y: 6297}
	StockMarketPosition  = Position{X: 11586, Y: 5253}
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Onboarding steps in progression order. A migration may advance a document's
// step but must never move it backwards.
const (
	StepNotStarted              = "not_started"
	StepMetMaya                 = "met_maya"
	StepAtBankWithMaya          = "at_bank_with_maya"
	StepClaimedMoney            = "claimed_money"
	StepBankOnboardingCompleted = "bank_onboarding_completed"
	StepReachedStockMarket      = "reached_stock_market"
)

var stepRank = map[string]int{
	StepNotStarted:              0,
	StepMetMaya:                 1,
	StepAtBankWithMaya:          2,
	StepClaimedMoney:            3,
	StepBankOnboardingCompleted: 4,
	StepReachedStockMarket:      5,
}

// Result is the outcome of a migration pass. Migrated is always a deep copy;
// the caller's document is never mutated. NeedsUpdate is false when the input
// was already current, which lets the store skip redundant writes.
type Result struct {
	Migrated    map[string]any
	Changes     []string
	NeedsUpdate bool
}

// IsOutdated reports whether a document predates the current schema. Missing
// or non-numeric versions count as version 0.
func IsOutdated(doc map[string]any) bool {
	v, ok := numberField(doc, "schemaVersion")
	if !ok {
		return true
	}
	return int(v) < CurrentVersion
}

// Migrate applies the ordered backfill rules and returns the upgraded
// document. Running it on its own output is a no-op.
func Migrate(doc map[string]any) Result {
	m := migration{doc: DeepCopy(doc)}

	m.stampVersion()
	m.synthesizeOnboarding()
	m.backfillOnboarding()
	m.synchronizeCompletionPairs()
	m.inferMayaPosition()
	m.backfillUnlockedBuildings()
	m.reapplyLegacyClaim()
	m.backfillTutorialFlag()
	m.ensureProgress()
	m.ensureFinancial()

	return Result{Migrated: m.doc, Changes: m.changes, NeedsUpdate: len(m.changes) > 0}
}

type migration struct {
	doc     map[string]any
	changes []string
}

func (m *migration) record(format string, args ...any) {
	m.changes = append(m.changes, fmt.Sprintf(format, args...))
}

// legacyClaimed reports whether the pre-onboarding flags say the player already
// took the starter bonus.
func (m *migration) legacyClaimed() bool {
	if boolField(m.doc, "starterClaimed") {
		return true
	}
	return sliceContains(stringSliceField(m.doc, "completedTutorials"), StarterMarker)
}

func (m *migration) stampVersion() {
	v, ok := numberField(m.doc, "schemaVersion")
	if ok && int(v) >= CurrentVersion {
		return
	}
	m.doc["schemaVersion"] = CurrentVersion
	m.record("schemaVersion raised to %d", CurrentVersion)
}

// synthesizeOnboarding builds the onboarding object for documents that predate
// it entirely, seeding progress from the legacy starter flag.
func (m *migration) synthesizeOnboarding() {
	if _, ok := childMap(m.doc, "onboarding"); ok {
		return
	}
	ob := defaultOnboarding()
	if m.legacyClaimed() {
		ob["hasMetMaya"] = true
		ob["hasFollowedMaya"] = true
		ob["hasClaimedMoney"] = true
		ob["onboardingStep"] = StepClaimedMoney
		ob["unlockedBuildings"].(map[string]any)["bank"] = true
	}
	m.doc["onboarding"] = ob
	m.record("onboarding synthesized from legacy flags (claimed=%v)", m.legacyClaimed())
}

func defaultOnboarding() map[string]any {
	return map[string]any{
		"hasMetMaya":                    false,
		"hasFollowedMaya":               false,
		"hasClaimedMoney":               false,
		"hasCompletedBankOnboarding":    false,
		"hasReachedStockMarket":         false,
		"onboardingStep":                StepNotStarted,
		"bankOnboardingComplete":        false,
		"stockMarketOnboardingComplete": false,
		"unlockedBuildings": map[string]any{
			"bank":        false,
			"atm":         false,
			"stockmarket": false,
		},
	}
}

// backfillOnboarding fills any holes in a partial onboarding object with safe
// defaults, including the legacy-compatible duplicate fields.
func (m *migration) backfillOnboarding() {
	ob, ok := childMap(m.doc, "onboarding")
	if !ok {
		return
	}
	for _, key := range []string{
		"hasMetMaya",
		"hasFollowedMaya",
		"hasClaimedMoney",
		"hasCompletedBankOnboarding",
		"hasReachedStockMarket",
	} {
		if _, present := ob[key].(bool); !present {
			ob[key] = false
			m.record("onboarding.%s defaulted to false", key)
		}
	}
	if _, present := ob["onboardingStep"].(string); !present {
		ob["onboardingStep"] = StepNotStarted
		m.record("onboarding.onboardingStep defaulted to %s", StepNotStarted)
	}
	if _, present := ob["bankOnboardingComplete"].(bool); !present {
		ob["bankOnboardingComplete"] = boolField(ob, "hasCompletedBankOnboarding")
		m.record("onboarding.bankOnboardingComplete initialized from canonical flag")
	}
	if _, present := ob["stockMarketOnboardingComplete"].(bool); !present {
		ob["stockMarketOnboardingComplete"] = boolField(ob, "hasReachedStockMarket")
		m.record("onboarding.stockMarketOnboardingComplete initialized from canonical flag")
	}
	if _, present := childMap(ob, "unlockedBuildings"); !present {
		ob["unlockedBuildings"] = map[string]any{
			"bank":        false,
			"atm":         false,
			"stockmarket": false,
		}
		m.record("onboarding.unlockedBuildings defaulted")
	}
}

// synchronizeCompletionPairs reconciles canonical flags with their duplicate
// names. Completion is a one-way fact, so a true on either side wins.
func (m *migration) synchronizeCompletionPairs() {
	ob, ok := childMap(m.doc, "onboarding")
	if !ok {
		return
	}
	pairs := []struct{ canonical, alias string }{
		{"hasCompletedBankOnboarding", "bankOnboardingComplete"},
		{"hasReachedStockMarket", "stockMarketOnboardingComplete"},
	}
	for _, p := range pairs {
		a, b := boolField(ob, p.canonical), boolField(ob, p.alias)
		if a == b {
			continue
		}
		ob[p.canonical] = true
		ob[p.alias] = true
		m.record("onboarding %s/%s reconciled to true", p.canonical, p.alias)
	}
}

// inferMayaPosition places the guide at the furthest location the player has
// demonstrably reached.
func (m *migration) inferMayaPosition() {
	ob, ok := childMap(m.doc, "onboarding")
	if !ok {
		return
	}
	if pos, present := childMap(ob, "mayaPosition"); present {
		if _, xOK := numberField(pos, "x"); xOK {
			if _, yOK := numberField(pos, "y"); yOK {
				return
			}
		}
	}
	pos := DefaultSpawnPosition
	switch {
	case boolField(ob, "hasReachedStockMarket") || boolField(ob, "stockMarketOnboardingComplete") ||
		stringField(ob, "onboardingStep") == StepReachedStockMarket:
		pos = StockMarketPosition
	case boolField(ob, "hasCompletedBankOnboarding") || boolField(ob, "bankOnboardingComplete"):
		pos = BankPosition
	}
	ob["mayaPosition"] = map[string]any{"x": pos.X, "y": pos.Y}
	m.record("onboarding.mayaPosition inferred as (%.0f, %.0f)", pos.X, pos.Y)
}

// backfillUnlockedBuildings derives missing unlocks from progress already on
// the document.
func (m *migration) backfillUnlockedBuildings() {
	ob, ok := childMap(m.doc, "onboarding")
	if !ok {
		return
	}
	ub, ok := childMap(ob, "unlockedBuildings")
	if !ok {
		return
	}
	unlocks := []struct {
		building string
		earned   bool
	}{
		{"bank", boolField(ob, "hasClaimedMoney") || boolField(ob, "hasCompletedBankOnboarding")},
		{"atm", boolField(ob, "hasCompletedBankOnboarding")},
		{"stockmarket", boolField(ob, "hasReachedStockMarket")},
	}
	for _, u := range unlocks {
		if u.earned && !boolField(ub, u.building) {
			ub[u.building] = true
			m.record("unlockedBuildings.%s backfilled from progress flags", u.building)
		}
	}
}

// reapplyLegacyClaim repairs documents whose onboarding object exists but
// disagrees with the legacy starter flag.
func (m *migration) reapplyLegacyClaim() {
	if !m.legacyClaimed() {
		return
	}
	ob, ok := childMap(m.doc, "onboarding")
	if !ok {
		return
	}
	if boolField(ob, "hasClaimedMoney") {
		return
	}
	ob["hasMetMaya"] = true
	ob["hasFollowedMaya"] = true
	ob["hasClaimedMoney"] = true
	m.advanceStep(ob, StepClaimedMoney)
	if ub, present := childMap(ob, "unlockedBuildings"); present {
		ub["bank"] = true
	}
	m.record("legacy starter claim reapplied to onboarding")
}

// advanceStep raises onboardingStep to at least the given step, never lower.
func (m *migration) advanceStep(ob map[string]any, step string) {
	current := stringField(ob, "onboardingStep")
	if stepRank[current] >= stepRank[step] {
		return
	}
	ob["onboardingStep"] = step
}

func (m *migration) backfillTutorialFlag() {
	if _, present := m.doc["hasCompletedTutorial"].(bool); present {
		return
	}
	ob, _ := childMap(m.doc, "onboarding")
	m.doc["hasCompletedTutorial"] = m.legacyClaimed() || boolField(ob, "hasClaimedMoney")
	m.record("hasCompletedTutorial backfilled to %v", m.doc["hasCompletedTutorial"])
}

func (m *migration) ensureProgress() {
	if _, present := childMap(m.doc, "progress"); present {
		return
	}
	m.doc["progress"] = map[string]any{
		"level":        1,
		"experience":   0,
		"achievements": []any{},
	}
	m.record("progress defaulted")
}

func (m *migration) ensureFinancial() {
	if _, present := childMap(m.doc, "financial"); present {
		return
	}
	m.doc["financial"] = map[string]any{
		"rupees":              float64(0),
		"totalWealth":         float64(0),
		"bankBalance":         float64(0),
		"stockPortfolioValue": float64(0),
	}
	m.record("financial defaulted to zero balances")
}

// Validate checks that a migrated document carries every field the current
// schema requires, including the compatibility duplicates. It never panics;
// any missing or mistyped field simply yields false.
func Validate(doc map[string]any) bool {
	if doc == nil {
		return false
	}
	if _, ok := numberField(doc, "schemaVersion"); !ok {
		return false
	}
	if _, ok := doc["hasCompletedTutorial"].(bool); !ok {
		return false
	}
	if _, ok := childMap(doc, "financial"); !ok {
		return false
	}
	if _, ok := childMap(doc, "progress"); !ok {
		return false
	}
	ob, ok := childMap(doc, "onboarding")
	if !ok {
		return false
	}
	for _, key := range []string{
		"hasMetMaya",
		"hasFollowedMaya",
		"hasClaimedMoney",
		"hasCompletedBankOnboarding",
		"hasReachedStockMarket",
		"bankOnboardingComplete",
		"stockMarketOnboardingComplete",
	} {
		if _, present := ob[key].(bool); !present {
			return false
		}
	}
	if _, present := ob["onboardingStep"].(string); !present {
		return false
	}
	if _, present := childMap(ob, "unlockedBuildings"); !present {
		return false
	}
	pos, ok := childMap(ob, "mayaPosition")
	if !ok {
		return false
	}
	if _, xOK := numberField(pos, "x"); !xOK {
		return false
	}
	if _, yOK := numberField(pos, "y"); !yOK {
		return false
	}
	return true
}
