// Package vcf parses Variant Call Format v4.2 text into variant records.
package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

const (
	// DefaultPatientID is used when the file names no sample.
	DefaultPatientID = "PATIENT_001"
	// DefaultSampleName is used when the file names no sample.
	DefaultSampleName = "SAMPLE"
	// NoVariantsMessage is the error message of a file without data lines.
	NoVariantsMessage = "No variant records found in VCF file."
	// SupportedFileFormat is the only version reported as valid in quality metrics.
	SupportedFileFormat = "VCFv4.2"

	minDataColumns = 8
	maxLineBytes   = 16 * 1024 * 1024
)

var (
	metaHeaderPattern = regexp.MustCompile(`^##(.+?)=(.+)$`)
	sampleIDPattern   = regexp.MustCompile(`ID=([^,>]+)`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-zA-Z0-9]`)

	errMalformedLine = errors.New("malformed data line")
)

// Parser converts VCF text into a domain.ParsedVcf. It holds no state between calls.
type Parser struct{}

// NewParser creates a new VCF parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads content line by line. It never returns an error: failures are
// reported through ParsedVcf.Success and ParsedVcf.ErrorMessage.
func (p *Parser) Parse(content string) (result *domain.ParsedVcf) {
	result = &domain.ParsedVcf{
		PatientID:  DefaultPatientID,
		SampleName: DefaultSampleName,
		Variants:   []domain.VariantRecord{},
		PharmGenes: []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			markFailed(result, fmt.Errorf("%v", r))
		}
	}()

	if err := p.scan(content, result); err != nil {
		markFailed(result, err)
		return result
	}

	result.PharmGenes = observedPharmGenes(result.Variants)
	result.VariantCount = len(result.Variants)
	result.Success = result.VariantCount > 0
	if !result.Success {
		result.ErrorMessage = NoVariantsMessage
	}
	return result
}

func (p *Parser) scan(content string, result *domain.ParsedVcf) error {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "##"):
			applyMetaHeader(line, result)
		case strings.HasPrefix(line, "#CHROM"):
			applyColumnHeader(line, result)
		case strings.HasPrefix(line, "#"):
			continue
		default:
			record, err := parseRecord(line)
			if errors.Is(err, errMalformedLine) {
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			result.Variants = append(result.Variants, record)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading VCF content: %w", err)
	}
	return nil
}

func applyMetaHeader(line string, result *domain.ParsedVcf) {
	result.MetaHeaders = append(result.MetaHeaders, line)

	m := metaHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return
	}
	key, value := m[1], m[2]

	switch key {
	case "SAMPLE":
		if id := sampleIDPattern.FindStringSubmatch(value); id != nil {
			result.SampleName = id[1]
			result.PatientID = "PATIENT_" + nonAlnumPattern.ReplaceAllString(id[1], "_")
		}
	case "fileformat":
		result.FileFormat = value
		result.VersionValid = value == SupportedFileFormat
	}
}

func applyColumnHeader(line string, result *domain.ParsedVcf) {
	columns := strings.Split(line[1:], "\t")
	if len(columns) <= 9 {
		return
	}
	sample := columns[len(columns)-1]
	result.SampleName = sample
	result.PatientID = "PATIENT_" + strings.ToUpper(nonAlnumPattern.ReplaceAllString(sample, "_"))
}

func parseRecord(line string) (domain.VariantRecord, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < minDataColumns {
		return domain.VariantRecord{}, errMalformedLine
	}

	position, err := strconv.ParseInt(cols[1], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return domain.VariantRecord{}, fmt.Errorf("position %q out of range", cols[1])
	}
	// Non-numeric or negative positions keep the record at position 0.
	invalidPosition := err != nil || position < 0
	if invalidPosition {
		position = 0
	}

	info, err := parseInfo(cols[7])
	if err != nil {
		return domain.VariantRecord{}, err
	}

	var format, sample string
	if len(cols) > 8 {
		format = cols[8]
	}
	if len(cols) > 9 {
		sample = cols[9]
	}
	gt := genotypeField(format, sample)

	record := domain.VariantRecord{
		Chromosome:  cols[0],
		Position:    position,
		BadPosition: invalidPosition,
		ID:          cols[2],
		Reference:   cols[3],
		Alternate:   cols[4],
		Quality:     cols[5],
		Filter:      cols[6],
		Info:        info,
		Genotype:    gt,
		Zygosity:    ClassifyGenotype(gt),
	}
	if record.Genotype == "" {
		record.Genotype = string(domain.ZYGOSITY_UNKNOWN)
	}
	if record.ID == "." {
		record.ID = ""
	}

	if gene, ok := info.Get("GENE"); ok {
		record.Gene = gene
	}
	if star, ok := info.Get("STAR"); ok {
		record.StarAllele = star
	}
	record.RSID = resolveRSID(info, record.ID)

	return record, nil
}

// parseInfo splits an INFO column on ";" then on the first "=". Keys without a
// value are recorded as "true".
func parseInfo(raw string) (domain.Info, error) {
	info := domain.Info{}
	if raw == "" || raw == "." {
		return info, nil
	}

	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, '=')
		switch {
		case idx == 0:
			return nil, fmt.Errorf("malformed INFO field %q: empty key", part)
		case idx > 0:
			info = append(info, domain.InfoField{Key: part[:idx], Value: part[idx+1:]})
		default:
			info = append(info, domain.InfoField{Key: part, Value: "true"})
		}
	}
	return info, nil
}

// genotypeField returns the GT subfield of the sample column, located through
// FORMAT, or the first colon-delimited token when FORMAT has no GT key.
func genotypeField(format, sample string) string {
	values := strings.Split(sample, ":")
	for i, key := range strings.Split(format, ":") {
		if key == "GT" {
			if i < len(values) {
				return values[i]
			}
			return ""
		}
	}
	return values[0]
}

func resolveRSID(info domain.Info, id string) string {
	if rs, ok := info.Get("RS"); ok && rs != "" {
		return "rs" + strings.TrimPrefix(strings.ToLower(rs), "rs")
	}
	if len(id) > 2 && strings.EqualFold(id[:2], "rs") {
		return "rs" + id[2:]
	}
	return ""
}

func observedPharmGenes(variants []domain.VariantRecord) []string {
	seen := make(map[string]bool)
	genes := []string{}
	for _, v := range variants {
		g := strings.ToUpper(v.Gene)
		if g == "" || seen[g] || !domain.IsSupportedGene(g) {
			continue
		}
		seen[g] = true
		genes = append(genes, g)
	}
	return genes
}

func markFailed(result *domain.ParsedVcf, err error) {
	result.Variants = []domain.VariantRecord{}
	result.VariantCount = 0
	result.PharmGenes = []string{}
	result.Success = false
	result.ErrorMessage = "Parse error: " + err.Error()
}
