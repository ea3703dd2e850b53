package kpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MetricSentinels documents the value each metric takes when its cell is
// missing or unparseable. Every metric currently defaults to 0.
var MetricSentinels = map[MetricKey]float64{
	MetricTAT:               0,
	MetricMajorNegativity:   0,
	MetricQualityConcern:    0,
	MetricNeighborCheck:     0,
	MetricGeneralNegativity: 0,
	MetricAppUsage:          0,
	MetricInsufficiency:     0,
}

var metricAliases = map[string]MetricKey{
	"tat":                MetricTAT,
	"turnaroundtime":     MetricTAT,
	"majornegativity":    MetricMajorNegativity,
	"majorneg":           MetricMajorNegativity,
	"qualityconcern":     MetricQualityConcern,
	"quality":            MetricQualityConcern,
	"neighborcheck":      MetricNeighborCheck,
	"neighbourcheck":     MetricNeighborCheck,
	"neighborcheckratio": MetricNeighborCheck,
	"generalnegativity":  MetricGeneralNegativity,
	"generalneg":         MetricGeneralNegativity,
	"appusage":           MetricAppUsage,
	"applicationusage":   MetricAppUsage,
	"insufficiency":      MetricInsufficiency,
	"insuff":             MetricInsufficiency,
}

var (
	employeeIDColumns = []string{"employeeid", "empid", "employeecode", "empcode", "agentid", "id"}
	nameColumns       = []string{"employeename", "empname", "name", "fullname", "agentname"}
	emailColumns      = []string{"email", "emailid", "emailaddress", "employeeemail"}
	periodColumns     = []string{"month", "period"}
)

var periodLayouts = []string{
	"2006-01",
	"2006-1",
	"2006/01",
	"2006/1",
	"01/2006",
	"1/2006",
	"01-2006",
	"1-2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"January-2006",
	"Jan 06",
	"January 06",
	"Jan-06",
	"January-06",
	"Jan'06",
	"2006-01-02",
	time.RFC3339,
}

// excelEpoch is day zero for spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// normalizeHeader lowercases and drops everything but letters and digits so
// "TAT %", "tat" and "T.A.T" compare equal.
func normalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LookupMetric resolves a column header, label or key to a metric.
func LookupMetric(name string) (MetricKey, bool) {
	key, ok := metricAliases[normalizeHeader(name)]
	return key, ok
}

// ParsePeriod normalizes a month value to YYYY-MM.
func ParsePeriod(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPeriod)
	}
	for _, layout := range periodLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01"), nil
		}
	}
	if serial, err := strconv.Atoi(value); err == nil && serial > 20000 && serial < 80000 {
		return excelEpoch.AddDate(0, 0, serial).Format("2006-01"), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
}

// ParseMetricValue strips percent signs, thousands separators and spaces.
func ParseMetricValue(raw string) (float64, error) {
	cleaned := strings.NewReplacer("%", "", ",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, errors.New("empty value")
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite value %q", raw)
	}
	return value, nil
}

type Identity struct {
	EmployeeID string `json:"employeeId,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
}

type Resolution struct {
	UserID    string
	Matched   bool
	MatchedBy string
}

// Resolver maps an uploaded identity to a canonical user. Implementations
// should try the employee id first, then email, then name.
type Resolver interface {
	Resolve(ctx context.Context, identity Identity) (Resolution, error)
}

type Normalizer struct {
	resolver Resolver
	period   string
}

// NewNormalizer validates the optional explicit batch period. An empty
// period means each row's Month column decides.
func NewNormalizer(resolver Resolver, period string) (*Normalizer, error) {
	n := &Normalizer{resolver: resolver}
	if strings.TrimSpace(period) != "" {
		normalized, err := ParsePeriod(period)
		if err != nil {
			return nil, err
		}
		n.period = normalized
	}
	return n, nil
}

// Normalize returns a RowError for rows that must be excluded from scoring;
// any other error comes from the resolver and is fatal for the batch.
func (n *Normalizer) Normalize(ctx context.Context, row RawRow) (PerformanceRecord, error) {
	record, rowErr := n.transform(row)
	if rowErr != nil {
		return PerformanceRecord{}, *rowErr
	}
	if n.resolver == nil {
		record.Warnings = append(record.Warnings, unmatchedWarning(record))
		return record, nil
	}
	resolution, err := n.resolver.Resolve(ctx, Identity{EmployeeID: record.EmployeeID, Name: record.EmployeeName, Email: record.Email})
	if err != nil {
		return PerformanceRecord{}, fmt.Errorf("%w: row %d: %w", ErrResolverFailed, row.Index, err)
	}
	record.Matched = resolution.Matched
	record.UserID = resolution.UserID
	if !record.Matched {
		record.UserID = ""
		record.Warnings = append(record.Warnings, unmatchedWarning(record))
	}
	return record, nil
}

func unmatchedWarning(record PerformanceRecord) Warning {
	return Warning{
		Code:    WarningUnmatchedIdentity,
		Message: fmt.Sprintf("no employee matched %q; notifications and assignments will be skipped", record.EmployeeIdentifier),
	}
}

func (n *Normalizer) transform(row RawRow) (PerformanceRecord, *RowError) {
	headers := make([]string, 0, len(row.Values))
	for header := range row.Values {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	columns := make(map[string]string, len(row.Values))
	metricCells := make(map[MetricKey]string, len(MetricKeys))
	for _, header := range headers {
		normalized := normalizeHeader(header)
		value := strings.TrimSpace(row.Values[header])
		if columns[normalized] == "" {
			columns[normalized] = value
		}
		if key, ok := metricAliases[normalized]; ok && metricCells[key] == "" {
			metricCells[key] = value
		}
	}

	present := 0
	for _, cell := range metricCells {
		if cell != "" {
			present++
		}
	}
	if present == 0 {
		return PerformanceRecord{}, &RowError{Row: row.Index, Reason: "no metric columns present"}
	}

	record := PerformanceRecord{
		Row:          row.Index,
		EmployeeID:   firstColumn(columns, employeeIDColumns),
		EmployeeName: firstColumn(columns, nameColumns),
		Email:        strings.ToLower(firstColumn(columns, emailColumns)),
		Metrics:      make(map[MetricKey]float64, len(MetricKeys)),
	}
	record.EmployeeIdentifier = identifierFor(record)
	if record.EmployeeIdentifier == "" {
		return PerformanceRecord{}, &RowError{Row: row.Index, Reason: "missing employee id, name and email"}
	}

	record.Period = n.period
	if record.Period == "" {
		raw := firstColumn(columns, periodColumns)
		period, err := ParsePeriod(raw)
		if err != nil {
			return PerformanceRecord{}, &RowError{Row: row.Index, Reason: "period could not be determined from Month column"}
		}
		record.Period = period
	}

	for _, key := range MetricKeys {
		cell := metricCells[key]
		value, err := ParseMetricValue(cell)
		if err != nil {
			value = MetricSentinels[key]
			reason := "missing"
			if cell != "" {
				reason = fmt.Sprintf("unparseable value %q", cell)
			}
			record.Warnings = append(record.Warnings, Warning{
				Code:    WarningDefaultedValue,
				Metric:  key,
				Message: fmt.Sprintf("%s %s, defaulted to %g", key.Label(), reason, value),
			})
		}
		record.Metrics[key] = value
	}
	return record, nil
}

func identifierFor(record PerformanceRecord) string {
	switch {
	case record.EmployeeID != "":
		return record.EmployeeID
	case record.Email != "":
		return record.Email
	default:
		return record.EmployeeName
	}
}

func firstColumn(columns map[string]string, candidates []string) string {
	for _, candidate := range candidates {
		if value := columns[candidate]; value != "" {
			return value
		}
	}
	return ""
}
