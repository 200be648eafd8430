package model

// RunStatus tracks orchestration progress through the pipeline stages.
type RunStatus string

const (
	StatusReceived            RunStatus = "RECEIVED"
	StatusIntakeComplete      RunStatus = "INTAKE_COMPLETE"
	StatusIntakeFailed        RunStatus = "INTAKE_FAILED"
	StatusSKUMatchingComplete RunStatus = "SKU_MATCHING_COMPLETE"
	StatusSKUMatchingFailed   RunStatus = "SKU_MATCHING_FAILED"
	StatusPricingComplete     RunStatus = "PRICING_COMPLETE"
	StatusPricingFailed       RunStatus = "PRICING_FAILED"
	StatusInsightsComplete    RunStatus = "INSIGHTS_COMPLETE"
	StatusInsightsFailed      RunStatus = "INSIGHTS_FAILED"
	StatusProposalComplete    RunStatus = "PROPOSAL_COMPLETE"
	StatusProposalFailed      RunStatus = "PROPOSAL_FAILED"
	StatusDone                RunStatus = "DONE"
)

// LineItem is one requested product extracted from an order document.
// Immutable once produced by the intake stage.
type LineItem struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	ItemName       string `json:"item_name,omitempty"`
	Specifications string `json:"specifications,omitempty"`
	Quantity       int    `json:"quantity"`
	Unit           string `json:"unit"`
	CategoryHint   string `json:"category_hint,omitempty"`
}

// IntakeResult is the structured output of the intake stage.
type IntakeResult struct {
	ClientName    string     `json:"client_name"`
	Location      string     `json:"location,omitempty"`
	OrderDate     string     `json:"order_date,omitempty"`
	Deadline      string     `json:"deadline,omitempty"`
	LineItems     []LineItem `json:"line_items"`
	IsRelevant    bool       `json:"is_relevant"`
	PriorityScore int        `json:"priority_score,omitempty"`
}

// SKUMatch links a line item to the catalog SKU the matcher selected.
// An empty MatchedSKUCode means no confident catalog match existed.
type SKUMatch struct {
	LineItemID     string  `json:"line_item_id"`
	OriginalDesc   string  `json:"original_desc"`
	MatchedSKUCode string  `json:"matched_sku_code"`
	MatchedSKUName string  `json:"matched_sku_name"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	IsAmbiguous    bool    `json:"is_ambiguous"`
	Quantity       int     `json:"quantity"`
}

// PricingRow is one priced line in the quote.
type PricingRow struct {
	SKUCode       string  `json:"sku_code,omitempty"`
	SKUName       string  `json:"sku_name"`
	Qty           int     `json:"qty"`
	UnitPriceBase float64 `json:"unit_price_base"`
	DiscountPct   float64 `json:"discount_pct"`
	NetUnitPrice  float64 `json:"net_unit_price"`
	LineTotal     float64 `json:"line_total_price"`
}

// PricingSummary holds quote totals. Always recomputed locally from the
// row totals; the model's own summary numbers are discarded.
type PricingSummary struct {
	Subtotal         float64 `json:"subtotal"`
	TotalDiscount    float64 `json:"total_discount_amount"`
	TaxAmount        float64 `json:"tax_amount"`
	GrandTotal       float64 `json:"grand_total"`
	OverallMarginPct float64 `json:"overall_margin_pct"`
}

// Pricing is the full output of the pricing stage.
type Pricing struct {
	Table   []PricingRow   `json:"pricing_table"`
	Summary PricingSummary `json:"summary"`
}

// Risk is a single identified deal risk.
type Risk struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Mitigation  string `json:"mitigation"`
}

// Insights is the sales analysis for a quote. Every field is always
// populated; consumers never see missing keys.
type Insights struct {
	WinProbabilityPct float64  `json:"win_probability_pct"`
	ConfidenceLevel   string   `json:"confidence_level"`
	RiskLevel         string   `json:"risk_level"`
	Risks             []Risk   `json:"risks"`
	Competitors       []string `json:"competitors"`
	Strengths         []string `json:"strengths"`
	Recommendations   []string `json:"recommendations"`
}

// PipelineState aggregates everything one orchestration run produces.
// It is owned by exactly one run and mutated in place by each stage.
type PipelineState struct {
	RFPID    string       `json:"rfp_id"`
	RawText  string       `json:"-"`
	Intake   IntakeResult `json:"rfp_data"`
	Matches  []SKUMatch   `json:"sku_matches"`
	Pricing  Pricing      `json:"pricing"`
	Insights Insights     `json:"insights"`
	Proposal string       `json:"proposal"`
	Status   RunStatus    `json:"status"`
	Errors   []string     `json:"errors"`
}
