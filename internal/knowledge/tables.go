package knowledge

import "github.com/pharmaguard-mcp-server/internal/domain"

const (
	fnNormal    = domain.NORMAL_FUNCTION
	fnDecreased = domain.DECREASED_FUNCTION
	fnNone      = domain.NO_FUNCTION
	fnIncreased = domain.INCREASED_FUNCTION
)

// starAlleleFunctions maps gene -> star allele -> CPIC allele function.
var starAlleleFunctions = map[string]map[string]domain.AlleleFunction{
	"CYP2D6": {
		"*1": fnNormal, "*2": fnNormal, "*3": fnNone, "*4": fnNone,
		"*5": fnNone, "*6": fnNone, "*9": fnDecreased, "*10": fnDecreased,
		"*17": fnDecreased, "*41": fnDecreased, "*1xN": fnIncreased, "*2xN": fnIncreased,
	},
	"CYP2C19": {
		"*1": fnNormal, "*2": fnNone, "*3": fnNone, "*17": fnIncreased, "*35": fnDecreased,
	},
	"CYP2C9": {
		"*1": fnNormal, "*2": fnDecreased, "*3": fnNone, "*5": fnDecreased,
		"*6": fnNone, "*8": fnDecreased, "*11": fnDecreased,
	},
	"SLCO1B1": {
		"*1a": fnNormal, "*1b": fnNormal, "*5": fnDecreased, "*15": fnDecreased,
		"*17": fnDecreased, "*37": fnNone,
	},
	"TPMT": {
		"*1": fnNormal, "*2": fnNone, "*3A": fnNone, "*3B": fnNone,
		"*3C": fnNone, "*4": fnNone,
	},
	"DPYD": {
		"*1": fnNormal, "*2A": fnNone, "*13": fnNone,
		"c.2846A>T": fnDecreased, "HapB3": fnDecreased,
	},
}

// knownVariants maps rsID -> curated pharmacogenomic annotation.
var knownVariants = map[string]VariantAnnotation{
	"rs3892097":  {Gene: "CYP2D6", StarAllele: "*4", Function: fnNone, ClinicalSignificance: "Loss of function"},
	"rs35742686": {Gene: "CYP2D6", StarAllele: "*3", Function: fnNone, ClinicalSignificance: "Frameshift → no protein"},
	"rs5030655":  {Gene: "CYP2D6", StarAllele: "*6", Function: fnNone, ClinicalSignificance: "Frameshift → no protein"},
	"rs1065852":  {Gene: "CYP2D6", StarAllele: "*10", Function: fnDecreased, ClinicalSignificance: "Reduced enzyme activity (Pro34Ser)"},
	"rs28371725": {Gene: "CYP2D6", StarAllele: "*41", Function: fnDecreased, ClinicalSignificance: "Splicing defect, reduced expression"},
	"rs4986774":  {Gene: "CYP2D6", StarAllele: "*17", Function: fnDecreased, ClinicalSignificance: "Reduced affinity for substrates"},
	"rs4244285":  {Gene: "CYP2C19", StarAllele: "*2", Function: fnNone, ClinicalSignificance: "Splice site defect"},
	"rs4986893":  {Gene: "CYP2C19", StarAllele: "*3", Function: fnNone, ClinicalSignificance: "Premature stop codon"},
	"rs12248560": {Gene: "CYP2C19", StarAllele: "*17", Function: fnIncreased, ClinicalSignificance: "Increased transcription"},
	"rs1799853":  {Gene: "CYP2C9", StarAllele: "*2", Function: fnDecreased, ClinicalSignificance: "Arg144Cys — reduced activity"},
	"rs1057910":  {Gene: "CYP2C9", StarAllele: "*3", Function: fnNone, ClinicalSignificance: "Ile359Leu — near-loss of function"},
	"rs56165452": {Gene: "CYP2C9", StarAllele: "*5", Function: fnDecreased, ClinicalSignificance: "Reduced enzyme activity"},
	"rs9923231":  {Gene: "VKORC1", StarAllele: "-1639G>A", Function: fnDecreased, ClinicalSignificance: "Warfarin sensitivity marker"},
	"rs4149056":  {Gene: "SLCO1B1", StarAllele: "*5", Function: fnDecreased, ClinicalSignificance: "Reduced transporter activity (Val174Ala)"},
	"rs2306283":  {Gene: "SLCO1B1", StarAllele: "*1b", Function: fnNormal, ClinicalSignificance: "Common variant, normal function"},
	"rs11045819": {Gene: "SLCO1B1", StarAllele: "*15", Function: fnDecreased, ClinicalSignificance: "Reduced hepatic uptake"},
	"rs1800460":  {Gene: "TPMT", StarAllele: "*3B", Function: fnNone, ClinicalSignificance: "Reduced enzyme activity"},
	"rs1142345":  {Gene: "TPMT", StarAllele: "*3C", Function: fnNone, ClinicalSignificance: "Major allele causing TPMT deficiency"},
	"rs1800462":  {Gene: "TPMT", StarAllele: "*2", Function: fnNone, ClinicalSignificance: "Ala80Pro substitution"},
	"rs3918290":  {Gene: "DPYD", StarAllele: "*2A", Function: fnNone, ClinicalSignificance: "IVS14+1G>A splice defect"},
	"rs55886062": {Gene: "DPYD", StarAllele: "*13", Function: fnNone, ClinicalSignificance: "Ile560Ser"},
	"rs67376798": {Gene: "DPYD", StarAllele: "c.2846A>T", Function: fnDecreased, ClinicalSignificance: "Asp949Val — reduced activity"},
}

// legacyDiplotypePhenotypes is the diplotype lookup used before allele scoring.
// Keys shared between genes carry the last gene's value.
var legacyDiplotypePhenotypes = map[string]domain.Phenotype{
	"*1/*1": domain.NM, "*1/*2": domain.IM, "*1/*3": domain.IM, "*1/*4": domain.IM,
	"*1/*5": domain.IM, "*1/*41": domain.NM, "*2/*2": domain.PM, "*2/*3": domain.PM,
	"*2/*4": domain.IM, "*2/*5": domain.IM, "*3/*3": domain.PM, "*3/*4": domain.PM,
	"*3/*5": domain.PM, "*4/*4": domain.PM, "*4/*5": domain.PM, "*5/*5": domain.PM,
	"*1/*9": domain.IM, "*2/*9": domain.IM, "*41/*41": domain.NM,
	"*1a/*1a": domain.NM, "*1a/*1b": domain.NM, "*1b/*1b": domain.NM,
	"*1a/*5": domain.IM, "*1b/*5": domain.IM,
	"*1/*13": domain.IM, "*2/*13": domain.PM, "*13/*13": domain.PM,
}

// geneMechanisms describes how each gene's product affects drug handling.
var geneMechanisms = map[string]string{
	"CYP2D6":  "CYP2D6 encodes the cytochrome P450 2D6 enzyme, responsible for metabolizing ~25% of clinically used drugs. Genetic variants reduce, eliminate, or amplify enzyme activity, directly altering drug plasma concentrations and clinical response.",
	"CYP2C19": "CYP2C19 encodes a hepatic cytochrome P450 enzyme critical for activating prodrugs like clopidogrel and metabolizing proton pump inhibitors. Loss-of-function variants prevent prodrug bioactivation, rendering them ineffective.",
	"CYP2C9":  "CYP2C9 is the primary enzyme metabolizing warfarin's S-enantiomer. Reduced-function variants decrease warfarin clearance, dramatically elevating bleeding risk at standard doses.",
	"SLCO1B1": "SLCO1B1 encodes the hepatic uptake transporter OATP1B1, responsible for liver extraction of statins from plasma. Transporter dysfunction leads to elevated systemic statin concentrations, increasing myopathy and rhabdomyolysis risk.",
	"TPMT":    "TPMT (thiopurine S-methyltransferase) detoxifies thiopurine drugs via methylation. Deficient TPMT activity diverts thiopurines into cytotoxic thioguanine nucleotides (TGNs), causing severe bone marrow suppression.",
	"DPYD":    "DPYD encodes dihydropyrimidine dehydrogenase, the primary catabolic enzyme for fluoropyrimidines. DPYD deficiency allows toxic fluorouracil accumulation, causing life-threatening mucositis, diarrhea, and neutropenia.",
}

// drugOrder fixes the listing order of supported drugs.
var drugOrder = []string{"CODEINE", "WARFARIN", "CLOPIDOGREL", "SIMVASTATIN", "AZATHIOPRINE", "FLUOROURACIL"}

func none() []string { return []string{} }

// drugRules holds the CPIC level A rules for every supported drug.
var drugRules = map[string]domain.DrugRule{
	"CODEINE": {
		Drug: "CODEINE", PrimaryGene: "CYP2D6", SecondaryGenes: []string{},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Codeine and CYP2D6 (PMID: 24458010)",
		PM: domain.RiskEntry{
			Risk: domain.INEFFECTIVE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.93,
			Dosing:       "Codeine is NOT recommended. Poor metabolizers have minimal analgesia due to inability to convert codeine to morphine via CYP2D6.",
			Alternatives: []string{"Morphine", "Oxycodone", "Hydromorphone"},
			Monitoring:   []string{"Pain scores", "Alternative opioid efficacy"},
			Urgency:      "High — select alternative analgesic",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_LOW, Confidence: 0.82,
			Dosing:       "Use with caution at 75% of standard dose. Monitor for reduced efficacy.",
			Alternatives: []string{"Tramadol (with caution)", "Morphine low dose"},
			Monitoring:   []string{"Pain control", "Sedation level"},
			Urgency:      "Moderate",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.91,
			Dosing:       "Standard dosing per clinical guidelines.",
			Alternatives: none(),
			Monitoring:   []string{"Standard pain monitoring"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.88,
			Dosing:       "Rapid metabolizer — increased morphine conversion. Reduce dose by 25%.",
			Alternatives: []string{"Non-opioid analgesics"},
			Monitoring:   []string{"Morphine levels", "Respiratory depression"},
			Urgency:      "High",
		},
		URM: domain.RiskEntry{
			Risk: domain.TOXIC, Severity: domain.SEVERITY_CRITICAL, Confidence: 0.97,
			Dosing:       "CONTRAINDICATED. Ultra-rapid metabolizers convert codeine to morphine at toxic rates. Life-threatening respiratory depression reported.",
			Alternatives: []string{"Morphine", "Hydromorphone", "Non-opioid analgesics"},
			Monitoring:   []string{"IMMEDIATE: Respiratory rate", "O2 saturation", "Sedation"},
			Urgency:      "CRITICAL — Do not prescribe",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_LOW, Confidence: 0.45,
			Dosing:       "Genotype inconclusive. Standard dosing with enhanced monitoring.",
			Alternatives: none(),
			Monitoring:   []string{"Standard monitoring"},
			Urgency:      "Low",
		},
		Contraindications: map[domain.Phenotype]string{
			domain.PM:  "Absolute contraindication",
			domain.URM: "Use with extreme caution",
		},
	},
	"WARFARIN": {
		Drug: "WARFARIN", PrimaryGene: "CYP2C9", SecondaryGenes: []string{"VKORC1"},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Warfarin and CYP2C9/VKORC1 (PMID: 21900891)",
		PM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_HIGH, Confidence: 0.94,
			Dosing:       "Significant dose reduction required (40–90% of standard). INR monitoring essential.",
			Alternatives: []string{"Dabigatran", "Rivaroxaban", "Apixaban"},
			Monitoring:   []string{"INR daily×7 days then weekly", "Bleeding signs"},
			Urgency:      "High — dose reduction mandatory",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.89,
			Dosing:       "Reduce starting dose by 25–50%. Frequent INR monitoring required.",
			Alternatives: []string{"DOACs if bleeding risk high"},
			Monitoring:   []string{"INR 2×/week initial"},
			Urgency:      "Moderate",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.88,
			Dosing:       "Standard dosing. Target INR 2–3 for most indications.",
			Alternatives: none(),
			Monitoring:   []string{"Monthly INR when stable"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_LOW, Confidence: 0.75,
			Dosing:       "May require slightly higher doses. Monitor INR.",
			Alternatives: none(),
			Monitoring:   []string{"INR monitoring"},
			Urgency:      "Low",
		},
		URM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.80,
			Dosing:       "Higher warfarin dose may be needed. Monitor INR closely.",
			Alternatives: []string{"DOACs"},
			Monitoring:   []string{"Frequent INR"},
			Urgency:      "Moderate",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_LOW, Confidence: 0.50,
			Dosing:       "Start with low dose. Frequent INR monitoring.",
			Alternatives: none(),
			Monitoring:   []string{"INR monitoring"},
			Urgency:      "Moderate",
		},
	},
	"CLOPIDOGREL": {
		Drug: "CLOPIDOGREL", PrimaryGene: "CYP2C19", SecondaryGenes: []string{},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Clopidogrel and CYP2C19 (PMID: 22205192)",
		PM: domain.RiskEntry{
			Risk: domain.INEFFECTIVE, Severity: domain.SEVERITY_HIGH, Confidence: 0.95,
			Dosing:       "Clopidogrel is NOT effective. Cannot convert to active metabolite. High MACE risk.",
			Alternatives: []string{"Prasugrel", "Ticagrelor (preferred)"},
			Monitoring:   []string{"Platelet aggregation", "MACE events"},
			Urgency:      "CRITICAL — Use alternative antiplatelet agent",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.87,
			Dosing:       "Consider alternative. If used, platelet function testing recommended.",
			Alternatives: []string{"Ticagrelor", "Prasugrel"},
			Monitoring:   []string{"Platelet function testing"},
			Urgency:      "High",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.90,
			Dosing:       "Standard clopidogrel dosing (75mg/day).",
			Alternatives: none(),
			Monitoring:   []string{"Standard cardiac monitoring"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.85,
			Dosing:       "Standard dosing. Enhanced antiplatelet effect.",
			Alternatives: none(),
			Monitoring:   []string{"Bleeding risk assessment"},
			Urgency:      "Routine",
		},
		URM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_LOW, Confidence: 0.78,
			Dosing:       "Monitor for increased bleeding.",
			Alternatives: none(),
			Monitoring:   []string{"Bleeding signs", "Platelet function"},
			Urgency:      "Low-Moderate",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_LOW, Confidence: 0.50,
			Dosing:       "Standard dosing with platelet function testing.",
			Alternatives: none(),
			Monitoring:   []string{"Platelet aggregation studies"},
			Urgency:      "Moderate",
		},
	},
	"SIMVASTATIN": {
		Drug: "SIMVASTATIN", PrimaryGene: "SLCO1B1", SecondaryGenes: []string{},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Simvastatin and SLCO1B1 (PMID: 24918167)",
		PM: domain.RiskEntry{
			Risk: domain.TOXIC, Severity: domain.SEVERITY_HIGH, Confidence: 0.91,
			Dosing:       "HIGH RISK of statin-induced myopathy. Switch to alternative statin.",
			Alternatives: []string{"Pravastatin", "Rosuvastatin", "Fluvastatin"},
			Monitoring:   []string{"CK levels", "Muscle pain/weakness", "Rhabdomyolysis symptoms"},
			Urgency:      "High — switch statin",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_MODERATE, Confidence: 0.86,
			Dosing:       "Reduce to simvastatin ≤20mg/day or switch to low-risk statin.",
			Alternatives: []string{"Pravastatin 40mg", "Rosuvastatin 10mg"},
			Monitoring:   []string{"CK at baseline and 3 months"},
			Urgency:      "Moderate — reduce dose or switch",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.89,
			Dosing:       "Standard simvastatin dosing (up to 40mg/day).",
			Alternatives: none(),
			Monitoring:   []string{"Annual CK and LFTs"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.82,
			Dosing:       "Standard dosing.",
			Alternatives: none(),
			Monitoring:   []string{"Standard lipid monitoring"},
			Urgency:      "Routine",
		},
		URM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.75,
			Dosing:       "Standard dosing.",
			Alternatives: none(),
			Monitoring:   []string{"Standard monitoring"},
			Urgency:      "Routine",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_LOW, Confidence: 0.50,
			Dosing:       "Standard or low simvastatin dose with CK monitoring.",
			Alternatives: none(),
			Monitoring:   []string{"CK monitoring"},
			Urgency:      "Low",
		},
		Contraindications: map[domain.Phenotype]string{
			domain.PM: "Relative contraindication - use alternatives",
		},
	},
	"AZATHIOPRINE": {
		Drug: "AZATHIOPRINE", PrimaryGene: "TPMT", SecondaryGenes: []string{},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Thiopurines and TPMT (PMID: 21270794)",
		PM: domain.RiskEntry{
			Risk: domain.TOXIC, Severity: domain.SEVERITY_CRITICAL, Confidence: 0.97,
			Dosing:       "TPMT deficient — CONTRAINDICATED at standard doses. Life-threatening myelosuppression.",
			Alternatives: []string{"Mycophenolate", "Cyclosporine"},
			Monitoring:   []string{"WEEKLY CBC×8 weeks", "Bone marrow function"},
			Urgency:      "CRITICAL — Consult hematology before initiation",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_HIGH, Confidence: 0.92,
			Dosing:       "Reduce starting dose by 30–70%. Close hematologic monitoring.",
			Alternatives: []string{"Mycophenolate mofetil"},
			Monitoring:   []string{"CBC every 2 weeks×3 months, then monthly"},
			Urgency:      "High — dose reduction required",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.90,
			Dosing:       "Standard azathioprine dosing (1.5–2.5 mg/kg/day).",
			Alternatives: none(),
			Monitoring:   []string{"CBC monthly", "LFTs quarterly"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.85,
			Dosing:       "Standard dosing.",
			Alternatives: none(),
			Monitoring:   []string{"Standard hematologic monitoring"},
			Urgency:      "Routine",
		},
		URM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.80,
			Dosing:       "Standard or slightly higher dose.",
			Alternatives: none(),
			Monitoring:   []string{"Standard monitoring"},
			Urgency:      "Routine",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_MODERATE, Confidence: 0.55,
			Dosing:       "Conservative starting dose. Consider enzyme testing.",
			Alternatives: none(),
			Monitoring:   []string{"Weekly CBC×4 weeks"},
			Urgency:      "Moderate",
		},
		Contraindications: map[domain.Phenotype]string{
			domain.PM: "Absolute contraindication or extreme caution",
		},
	},
	"FLUOROURACIL": {
		Drug: "FLUOROURACIL", PrimaryGene: "DPYD", SecondaryGenes: []string{},
		CPICLevel: "A", CPICGuideline: "CPIC Guideline for Fluoropyrimidines and DPYD (PMID: 23988590)",
		PM: domain.RiskEntry{
			Risk: domain.TOXIC, Severity: domain.SEVERITY_CRITICAL, Confidence: 0.98,
			Dosing:       "DPYD deficient — CONTRAINDICATED. Fatal fluorouracil toxicity: severe mucositis, diarrhea, myelosuppression.",
			Alternatives: []string{"Alternative chemotherapy per oncologist"},
			Monitoring:   []string{"Immediate: CBC, LFTs, GI symptoms"},
			Urgency:      "CRITICAL — Do not administer",
		},
		IM: domain.RiskEntry{
			Risk: domain.ADJUST_DOSAGE, Severity: domain.SEVERITY_HIGH, Confidence: 0.93,
			Dosing:       "Reduce starting dose by 50%. DPD-deficient patients require significant dose reduction.",
			Alternatives: []string{"Reduce dose 25–50% depending on variant"},
			Monitoring:   []string{"CBC every cycle", "Mucositis assessment"},
			Urgency:      "High — mandatory dose reduction",
		},
		NM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.88,
			Dosing:       "Standard fluorouracil dosing per oncology regimen.",
			Alternatives: none(),
			Monitoring:   []string{"Standard oncology monitoring"},
			Urgency:      "Routine",
		},
		RM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.82,
			Dosing:       "Standard dosing.",
			Alternatives: none(),
			Monitoring:   []string{"Standard oncology monitoring"},
			Urgency:      "Routine",
		},
		URM: domain.RiskEntry{
			Risk: domain.SAFE, Severity: domain.SEVERITY_NONE, Confidence: 0.78,
			Dosing:       "Standard dosing.",
			Alternatives: none(),
			Monitoring:   []string{"Standard monitoring"},
			Urgency:      "Routine",
		},
		Unknown: domain.RiskEntry{
			Risk: domain.RISK_UNKNOWN, Severity: domain.SEVERITY_MODERATE, Confidence: 0.60,
			Dosing:       "50% dose if testing unavailable.",
			Alternatives: none(),
			Monitoring:   []string{"CBC every cycle", "Toxicity surveillance"},
			Urgency:      "Moderate",
		},
		Contraindications: map[domain.Phenotype]string{
			domain.PM: "Absolute contraindication",
		},
	},
}
