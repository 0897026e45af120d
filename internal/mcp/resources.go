package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/explain"
)

const (
	DRUG_RESOURCE_PREFIX = "pharmaguard://drugs/"
	PROMPT_EXPLAIN_RISK  = "explain_drug_risk"
)

// registerResources exposes one read-only JSON resource per drug rule.
func (s *LiteServer) registerResources() {
	for _, name := range s.analyzer.SupportedDrugs() {
		rule, ok := s.analyzer.Rule(name)
		if !ok {
			continue
		}
		s.mcpServer.AddResource(&mcp.Resource{
			URI:         DRUG_RESOURCE_PREFIX + rule.Drug,
			Name:        strings.ToLower(rule.Drug),
			Description: fmt.Sprintf("CPIC rule for %s (%s)", rule.Drug, rule.PrimaryGene),
			MIMEType:    "application/json",
		}, s.readDrugResource)
	}
}

func (s *LiteServer) readDrugResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	text, err := s.drugResource(uri)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: text}},
	}, nil
}

// drugResource renders the rule addressed by uri.
func (s *LiteServer) drugResource(uri string) (string, error) {
	drug, ok := strings.CutPrefix(uri, DRUG_RESOURCE_PREFIX)
	if !ok || drug == "" {
		return "", fmt.Errorf("resource %q: %w", uri, domain.ErrNotFound)
	}
	rule, ok := s.analyzer.Rule(drug)
	if !ok {
		return "", fmt.Errorf("drug %q: %w", drug, domain.ErrNotFound)
	}
	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding rule: %w", err)
	}
	return string(data), nil
}

func (s *LiteServer) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        PROMPT_EXPLAIN_RISK,
		Description: "Ask the model for a structured clinical explanation of a drug, diplotype and phenotype call",
		Arguments: []*mcp.PromptArgument{
			{Name: "drug", Description: "Drug name, e.g. CODEINE", Required: true},
			{Name: "phenotype", Description: "PM, IM, NM, RM, URM or Unknown", Required: true},
			{Name: "diplotype", Description: "Star allele diplotype, e.g. *4/*4"},
		},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text, err := s.explainPrompt(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: "Clinical explanation request",
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	})
}

// explainPrompt builds the explanation prompt from the rule's guidance for
// the given phenotype.
func (s *LiteServer) explainPrompt(args map[string]string) (string, error) {
	rule, ok := s.analyzer.Rule(args["drug"])
	if !ok {
		return "", fmt.Errorf("drug %q: %w", args["drug"], domain.ErrNotFound)
	}
	phenotype, err := domain.ParsePhenotype(args["phenotype"])
	if err != nil {
		return "", domain.NewValidationError("phenotype", err.Error(), args["phenotype"])
	}
	diplotype := args["diplotype"]
	if diplotype == "" {
		diplotype = string(domain.PHENOTYPE_UNKNOWN)
	}

	entry := rule.Entry(phenotype)
	result := &domain.AnalysisResult{
		Drug: rule.Drug,
		RiskAssessment: domain.RiskAssessment{
			RiskLabel:       entry.Risk,
			ConfidenceScore: entry.Confidence,
			Severity:        entry.Severity,
		},
		PharmacogenomicProfile: domain.PharmacogenomicProfile{
			PrimaryGene: rule.PrimaryGene,
			Diplotype:   diplotype,
			Phenotype:   phenotype,
		},
		ClinicalRecommendation: domain.ClinicalRecommendation{
			DosingRecommendation: entry.Dosing,
			CPICGuideline:        rule.CPICGuideline,
		},
	}
	return explain.BuildPrompt(result), nil
}
