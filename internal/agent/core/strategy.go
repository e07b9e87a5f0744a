package core

// Query intent profiles recognized by the router.
const (
	ProfileBRDModeling        = "BRD_MODELING"
	ProfileCompanyResearch    = "COMPANY_RESEARCH"
	ProfileReqElaboration     = "REQUIREMENT_ELABORATION"
	ProfileMarketOrTrendQuery = "MARKET_OR_TREND_QUERY"
	ProfileDefinitionOrSimple = "DEFINITION_OR_SIMPLE_QUERY"
)

// Strategy selects the model, effort and search budget for a research pass.
type Strategy struct {
	Model       string
	Effort      string
	MaxSearches int
	Tools       []string
	RecencyBias bool
}

type strategyKey struct {
	profile string
	depth   string
}

var strategyMatrix = map[strategyKey]Strategy{
	{ProfileDefinitionOrSimple, "quick"}:    {Model: "gpt-5.1", Effort: "low", MaxSearches: 2, Tools: []string{"web_search"}, RecencyBias: true},
	{ProfileDefinitionOrSimple, "standard"}: {Model: "gpt-5.1", Effort: "medium", MaxSearches: 3, Tools: []string{"web_search"}, RecencyBias: true},

	{ProfileCompanyResearch, "quick"}:    {Model: "gpt-5.1", Effort: "low", MaxSearches: 2, Tools: []string{"web_search"}, RecencyBias: true},
	{ProfileCompanyResearch, "standard"}: {Model: "gpt-5.1", Effort: "high", MaxSearches: 4, Tools: []string{"web_search"}, RecencyBias: true},
	{ProfileCompanyResearch, "deep"}:     {Model: "o3-deep-research", Effort: "high", MaxSearches: 8, Tools: []string{"web_search"}, RecencyBias: true},

	{ProfileBRDModeling, "quick"}:    {Model: "gpt-5.1", Effort: "medium", MaxSearches: 2, Tools: []string{"web_search"}},
	{ProfileBRDModeling, "standard"}: {Model: "gpt-5.1", Effort: "high", MaxSearches: 4, Tools: []string{"web_search"}},
	{ProfileBRDModeling, "deep"}:     {Model: "o3-deep-research", Effort: "high", MaxSearches: 8, Tools: []string{"web_search"}},

	{ProfileReqElaboration, "quick"}:    {Model: "gpt-5.1", Effort: "medium", MaxSearches: 2, Tools: []string{"web_search"}},
	{ProfileReqElaboration, "standard"}: {Model: "gpt-5.1", Effort: "high", MaxSearches: 3, Tools: []string{"web_search"}},
	{ProfileReqElaboration, "deep"}:     {Model: "o3-deep-research", Effort: "high", MaxSearches: 8, Tools: []string{"web_search"}},

	{ProfileMarketOrTrendQuery, "quick"}:    {Model: "gpt-5.1", Effort: "medium", MaxSearches: 2, Tools: []string{"web_search"}, RecencyBias: true},
	{ProfileMarketOrTrendQuery, "standard"}: {Model: "gpt-5.1", Effort: "high", MaxSearches: 4, Tools: []string{"web_search"}, RecencyBias: true},
	{ProfileMarketOrTrendQuery, "deep"}:     {Model: "o3-deep-research", Effort: "high", MaxSearches: 8, Tools: []string{"web_search"}, RecencyBias: true},
}

// SelectStrategy returns the strategy for a profile and depth. A missing
// combination falls back to the profile's standard row.
func SelectStrategy(profile, depth string) Strategy {
	if s, ok := strategyMatrix[strategyKey{profile, depth}]; ok {
		return s
	}
	if s, ok := strategyMatrix[strategyKey{profile, "standard"}]; ok {
		return s
	}
	return strategyMatrix[strategyKey{ProfileDefinitionOrSimple, "standard"}]
}
