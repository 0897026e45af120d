package vcf

import (
	"fmt"
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// DefaultMaxContentBytes is the largest VCF document accepted for analysis.
const DefaultMaxContentBytes = 5 * 1024 * 1024

// Validator performs the cheap pre-parse checks on VCF content
type Validator struct {
	maxBytes int
}

// NewValidator creates a new VCF validator. A non-positive maxBytes selects DefaultMaxContentBytes.
func NewValidator(maxBytes int) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes returns the configured size limit.
func (v *Validator) MaxBytes() int {
	return v.maxBytes
}

// Validate rejects empty content, oversized content and text that has neither
// a #CHROM header nor a ##fileformat line.
func (v *Validator) Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.NewValidationError("vcfContent", "File is empty", nil)
	}
	if len(content) > v.maxBytes {
		return &SizeError{Size: len(content), Limit: v.maxBytes}
	}
	if !strings.Contains(content, "#CHROM") && !strings.Contains(content, "##fileformat") {
		return domain.NewValidationError("vcfContent", "File does not appear to be a valid VCF (missing #CHROM header)", nil)
	}
	return nil
}

// SizeError reports content larger than the validator's limit.
type SizeError struct {
	Size  int
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("VCF content exceeds %d MB limit", e.Limit/(1024*1024))
}
