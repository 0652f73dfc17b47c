package schema

// KeyPatch replaces primary keys and adds foreign keys for a database whose
// declared constraints are missing or wrong.
type KeyPatch struct {
	PrimaryKeys map[string][]string
	ForeignKeys []ForeignKey
}

var knownKeyPatches = map[string]KeyPatch{
	"debit_card_specializing": {
		PrimaryKeys: map[string][]string{
			"customers":       {"CustomerID"},
			"gasstations":     {"GasStationID"},
			"products":        {"ProductID"},
			"transactions_1k": {"TransactionID"},
			"yearmonth":       {"Date"},
		},
		ForeignKeys: []ForeignKey{
			{Table: "customers", Column: "CustomerID", RefTable: "transactions_1k", RefColumn: "CustomerID"},
			{Table: "gasstations", Column: "GasStationID", RefTable: "transactions_1k", RefColumn: "GasStationID"},
			{Table: "products", Column: "ProductID", RefTable: "transactions_1k", RefColumn: "ProductID"},
			{Table: "yearmonth", Column: "Date", RefTable: "transactions_1k", RefColumn: "Date"},
			{Table: "customers", Column: "CustomerID", RefTable: "yearmonth", RefColumn: "CustomerID"},
		},
	},
	"european_football_2": {
		PrimaryKeys: map[string][]string{
			"Player":            {"id"},
			"Team":              {"id"},
			"Match":             {"id"},
			"League":            {"id"},
			"Player_Attributes": {"id"},
			"Team_Attributes":   {"id"},
			"Country":           {"id"},
		},
		ForeignKeys: []ForeignKey{
			{Table: "Player_Attributes", Column: "player_api_id", RefTable: "Player", RefColumn: "player_api_id"},
			{Table: "Team_Attributes", Column: "team_api_id", RefTable: "Team", RefColumn: "team_api_id"},
			{Table: "League", Column: "country_id", RefTable: "Country", RefColumn: "id"},
			{Table: "Match", Column: "league_id", RefTable: "League", RefColumn: "id"},
			{Table: "Match", Column: "home_team_api_id", RefTable: "Team", RefColumn: "team_api_id"},
			{Table: "Match", Column: "away_team_api_id", RefTable: "Team", RefColumn: "team_api_id"},
			{Table: "Match", Column: "country_id", RefTable: "Country", RefColumn: "id"},
		},
	},
	"student_club": {
		PrimaryKeys: map[string][]string{
			"member":     {"member_id"},
			"major":      {"major_id"},
			"event":      {"event_id"},
			"zip_code":   {"zip_code"},
			"attendance": {"link_to_event"},
			"budget":     {"budget_id"},
			"expense":    {"expense_id"},
			"income":     {"income_id"},
		},
		ForeignKeys: []ForeignKey{
			{Table: "attendance", Column: "link_to_member", RefTable: "member", RefColumn: "member_id"},
			{Table: "attendance", Column: "link_to_event", RefTable: "event", RefColumn: "event_id"},
			{Table: "budget", Column: "link_to_event", RefTable: "event", RefColumn: "event_id"},
			{Table: "expense", Column: "link_to_member", RefTable: "member", RefColumn: "member_id"},
			{Table: "expense", Column: "link_to_budget", RefTable: "budget", RefColumn: "budget_id"},
			{Table: "income", Column: "link_to_member", RefTable: "member", RefColumn: "member_id"},
			{Table: "member", Column: "zip", RefTable: "zip_code", RefColumn: "zip_code"},
			{Table: "member", Column: "link_to_major", RefTable: "major", RefColumn: "major_id"},
		},
	},
}

// PatchFor returns the known key patch for a database id.
func PatchFor(dbID string) (KeyPatch, bool) {
	patch, ok := knownKeyPatches[dbID]
	return patch, ok
}

// Apply overrides primary keys table by table and appends the patch edges as
// curated foreign keys.
func (p KeyPatch) Apply(g *Graph) {
	if g.PrimaryKeys == nil {
		g.PrimaryKeys = make(map[string][]string)
	}
	for table, keys := range p.PrimaryKeys {
		g.PrimaryKeys[table] = append([]string(nil), keys...)
	}
	for _, fk := range p.ForeignKeys {
		fk.Curated = true
		g.ForeignKeys = append(g.ForeignKeys, fk)
	}
}
