package model

// IdeaStatus tracks the lifecycle of a suggested or saved project idea.
type IdeaStatus string

const (
	IdeaStatusSuggested IdeaStatus = "suggested"
	IdeaStatusSaved     IdeaStatus = "saved"
	IdeaStatusDismissed IdeaStatus = "dismissed"
)

// Feasibility is the oracle-estimated difficulty of building an idea given
// the corpus (§4.K).
type Feasibility string

const (
	FeasibilityHigh   Feasibility = "high"
	FeasibilityMedium Feasibility = "medium"
	FeasibilityLow    Feasibility = "low"
)

// BuildIdeaSeed is an ephemeral suggestion produced by the Idea/Build
// Suggester for a knowledge base, before a user chooses to save it (§3).
type BuildIdeaSeed struct {
	ID                 string      `json:"id"`
	KBID               string      `json:"kbId"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Difficulty         string      `json:"difficulty"`
	Feasibility        Feasibility `json:"feasibility"`
	EffortEstimate     string      `json:"effortEstimate"`
	RequiredSkills     []string    `json:"requiredSkills"`
	MissingKnowledge   []string    `json:"missingKnowledge"`
	RelevantClusters   []int64     `json:"relevantClusters"`
	StarterSteps       []string    `json:"starterSteps"`
	KnowledgeCoverage  float64     `json:"knowledgeCoverage"`
	ReferencedSections []string    `json:"referencedSections"`
}

// MarketRecommendation is the oracle's go/no-go verdict on an idea's
// commercial viability (§4.K supplement: market validation).
type MarketRecommendation string

const (
	MarketRecommendationProceed MarketRecommendation = "proceed"
	MarketRecommendationPivot   MarketRecommendation = "pivot"
	MarketRecommendationAbandon MarketRecommendation = "abandon"
)

// MarketValidation is the oracle's brutally-honest assessment of a build
// idea's market viability: size, competition, revenue potential, and a
// go/pivot/abandon recommendation with reasoning.
type MarketValidation struct {
	MarketSizeEstimate    string                `json:"marketSizeEstimate"`
	MarketSizeDetails     string                `json:"marketSizeDetails"`
	CompetitionLevel      string                `json:"competitionLevel"`
	Competitors           []string              `json:"competitors"`
	CompetitionAnalysis   string                `json:"competitionAnalysis"`
	UniqueAdvantage       string                `json:"uniqueAdvantage"`
	PotentialRevenue      string                `json:"potentialRevenue"`
	RevenueReasoning      string                `json:"revenueReasoning"`
	TargetCustomerProfile map[string]string    `json:"targetCustomerProfile"`
	GoToMarketStrategy    []string             `json:"goToMarketStrategy"`
	RiskFactors           []string             `json:"riskFactors"`
	Recommendation        MarketRecommendation `json:"recommendation"`
	Reasoning             string               `json:"reasoning"`
	ConfidenceScore       float64              `json:"confidenceScore"`
	NextValidationSteps   []string             `json:"nextValidationSteps"`
}

// SavedIdea is a BuildIdeaSeed a user has explicitly kept.
type SavedIdea struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Difficulty         string     `json:"difficulty"`
	Feasibility        Feasibility `json:"feasibility"`
	EffortEstimate     string     `json:"effortEstimate"`
	ReferencedSections []string   `json:"referencedSections"`
	Status             IdeaStatus `json:"status"`
}
