package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatText:
		return nil
	}
	return fmt.Errorf("unknown format %q (want json, yaml or text)", format)
}

// encode writes v as JSON or YAML. YAML keys follow the JSON field names.
func encode(w io.Writer, format string, v any) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func writeReport(w io.Writer, format string, report *domain.AnalysisReport) error {
	if format != formatText {
		return encode(w, format, report)
	}

	fmt.Fprintf(w, "Patient:  %s\n", report.PatientID)
	fmt.Fprintf(w, "Sample:   %s\n", report.VCFMetadata.SampleName)
	fmt.Fprintf(w, "Variants: %d (genes: %s)\n\n", report.VCFMetadata.TotalVariants, joinOrNone(report.VCFMetadata.PharmaGenesDetected))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRUG\tGENE\tDIPLOTYPE\tPHENOTYPE\tRISK\tSEVERITY\tCONFIDENCE")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.0f%%\n",
			r.Drug,
			orDash(r.PharmacogenomicProfile.PrimaryGene),
			r.PharmacogenomicProfile.Diplotype,
			r.PharmacogenomicProfile.Phenotype,
			r.RiskAssessment.RiskLabel,
			r.RiskAssessment.Severity,
			r.RiskAssessment.ConfidenceScore*100,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range report.Results {
		fmt.Fprintf(w, "\n%s: %s\n", r.Drug, r.ClinicalRecommendation.DosingRecommendation)
		if alts := r.ClinicalRecommendation.AlternativeDrugs; len(alts) > 0 {
			fmt.Fprintf(w, "  Alternatives: %s\n", strings.Join(alts, ", "))
		}
		if r.ClinicalRecommendation.Contraindications != "" {
			fmt.Fprintf(w, "  Contraindications: %s\n", r.ClinicalRecommendation.Contraindications)
		}
		if r.Explanation != nil && r.Explanation.Summary != "" {
			fmt.Fprintf(w, "  Summary (%s): %s\n", r.Explanation.GeneratedBy, r.Explanation.Summary)
		}
	}
	return nil
}

func writeParsed(w io.Writer, format string, parsed *domain.ParsedVcf) error {
	if format != formatText {
		return encode(w, format, parsed)
	}

	fmt.Fprintf(w, "Patient:       %s\n", parsed.PatientID)
	fmt.Fprintf(w, "Sample:        %s\n", parsed.SampleName)
	fmt.Fprintf(w, "Parsed:        %t\n", parsed.Success)
	fmt.Fprintf(w, "Format:        %s (valid: %t)\n", orDash(parsed.FileFormat), parsed.VersionValid)
	fmt.Fprintf(w, "Variants:      %d\n", parsed.VariantCount)
	fmt.Fprintf(w, "Pharmacogenes: %s\n", joinOrNone(parsed.PharmGenes))
	if parsed.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:         %s\n", parsed.ErrorMessage)
	}
	return nil
}

func writeDrugs(w io.Writer, format string, rules []*domain.DrugRule) error {
	if format != formatText {
		return encode(w, format, rules)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DRUG\tPRIMARY GENE\tSECONDARY\tCPIC LEVEL")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Drug, r.PrimaryGene, joinOrNone(r.SecondaryGenes), r.CPICLevel)
	}
	return tw.Flush()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
