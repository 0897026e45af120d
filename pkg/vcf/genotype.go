package vcf

import (
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// ClassifyGenotype maps a GT value such as "0/1" or "1|1" to a zygosity.
// Only the first two allele indices are considered. Two different alternate
// indices ("1/2") and half-called genotypes ("0/.") are heterozygous.
func ClassifyGenotype(gt string) domain.Zygosity {
	if gt == "" {
		return domain.ZYGOSITY_UNKNOWN
	}

	alleles := strings.Split(strings.ReplaceAll(gt, "|", "/"), "/")
	if len(alleles) < 2 {
		return domain.ZYGOSITY_UNKNOWN
	}

	a, b := alleles[0], alleles[1]
	switch {
	case a == "." && b == ".":
		return domain.ZYGOSITY_UNKNOWN
	case a == "0" && b == "0":
		return domain.HOMOZYGOUS_REF
	case a != "0" && b != "0" && a == b:
		return domain.HOMOZYGOUS_ALT
	default:
		return domain.HETEROZYGOUS
	}
}
