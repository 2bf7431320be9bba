// Package scoring turns aggregated daily rows into reporting metrics.
package scoring

import (
	"fmt"
	"strconv"

	"github.com/AI-Template-SDK/senso-tracker/internal/models"
)

// ValidationError reports a malformed YYYYMM month string.
type ValidationError struct {
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scoring: invalid month %q: %s", e.Value, e.Reason)
}

// ParseMonth validates a YYYYMM string and returns its year and month.
func ParseMonth(yyyymm string) (int, int, error) {
	if len(yyyymm) != 6 {
		return 0, 0, &ValidationError{Value: yyyymm, Reason: "expected 6 characters"}
	}
	for _, c := range yyyymm {
		if c < '0' || c > '9' {
			return 0, 0, &ValidationError{Value: yyyymm, Reason: "non-digit character"}
		}
	}

	year, _ := strconv.Atoi(yyyymm[:4])
	month, _ := strconv.Atoi(yyyymm[4:])
	if month < 1 || month > 12 {
		return 0, 0, &ValidationError{Value: yyyymm, Reason: "month out of range"}
	}
	return year, month, nil
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the calendar day count for a YYYYMM month.
func DaysInMonth(yyyymm string) (int, error) {
	year, month, err := ParseMonth(yyyymm)
	if err != nil {
		return 0, err
	}
	if month == 2 && IsLeapYear(year) {
		return 29, nil
	}
	return monthDays[month-1], nil
}

func atLeastOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// VisibilityScore is sum / (locations * products * platforms * days) * 100,
// where every zero denominator term counts as 1.
func VisibilityScore(in models.ScoreInputs) float64 {
	denominator := atLeastOne(in.DistinctLocations) *
		atLeastOne(in.DistinctProducts) *
		atLeastOne(in.DistinctPlatforms) *
		atLeastOne(in.DistinctDays)
	return float64(in.Sum) / float64(denominator) * 100
}

// Mean averages the non-nil values. It returns nil when none are present.
func Mean[T int | float64](values []*T) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += float64(*v)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// Score is the reporting view over one filtered row set.
type Score struct {
	Visibility   float64            `json:"visibility"`
	AverageRank  *float64           `json:"average_rank"`
	AvgSentiment *float64           `json:"average_sentiment"`
	Inputs       models.ScoreInputs `json:"inputs"`
}

// Compute derives the full score from aggregate inputs. The averages come
// from the store where SQL AVG already excludes nulls.
func Compute(in models.ScoreInputs) Score {
	return Score{
		Visibility:   VisibilityScore(in),
		AverageRank:  in.AvgRank,
		AvgSentiment: in.AvgSentiment,
		Inputs:       in,
	}
}
