// Package identity scores how consistent OCR-extracted document fields,
// authority-sourced eKYC fields, and a biometric face-match score are. The
// verdict is the heart of the product: it decides "verified" or not.
//
// Everything here is pure. Same inputs, same verdict, every time.
package identity

import (
	"math"
	"strings"

	dErrors "pehchan/pkg/domain-errors"
)

// Record holds the demographic fields both extraction pipelines produce.
// Either side may leave fields empty; an empty field never matches.
type Record struct {
	Name         string `json:"name"`
	DateOfBirth  string `json:"date_of_birth"`
	Gender       string `json:"gender"`
	GuardianName string `json:"guardian_name"`
	Address      string `json:"address"`
	District     string `json:"district"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
}

// matchFields is the fixed field list the percentage is computed over.
// Order is stable so reports list fields consistently.
var matchFields = []struct {
	name string
	get  func(Record) string
}{
	{"name", func(r Record) string { return r.Name }},
	{"dateOfBirth", func(r Record) string { return r.DateOfBirth }},
	{"gender", func(r Record) string { return r.Gender }},
	{"guardianName", func(r Record) string { return r.GuardianName }},
	{"address", func(r Record) string { return r.Address }},
	{"district", func(r Record) string { return r.District }},
	{"state", func(r Record) string { return r.State }},
	{"pincode", func(r Record) string { return r.Pincode }},
}

// Thresholds. Both gates are independent: a perfect field match with a weak
// face score still fails, and vice versa.
const (
	FieldMatchThreshold = 80
	FaceMatchThreshold  = 80
)

// Result is the immutable outcome of one comparison.
type Result struct {
	IsVerified      bool            `json:"is_verified"`
	MatchPercentage int             `json:"match_percentage"`
	FaceMatchScore  float64         `json:"face_match_score"`
	FieldMatches    map[string]bool `json:"field_matches"`
	MatchedCount    int             `json:"matched_count"`
	TotalFields     int             `json:"total_fields"`
}

// Match compares OCR output against eKYC data and folds in the face score.
//
// A completely absent eKYC record means the authority lookup never finished;
// that is a pipeline failure, not a zero-field match, and callers must be able
// to tell the two apart.
func Match(ocr Record, ekyc Record, faceScore float64) (Result, error) {
	if ekyc == (Record{}) {
		return Result{}, dErrors.New(dErrors.CodeLookupIncomplete, "ekyc data absent, identity lookup did not complete")
	}
	if faceScore < 0 || faceScore > 100 {
		return Result{}, dErrors.New(dErrors.CodeValidation, "face match score out of range")
	}

	fieldMatches := make(map[string]bool, len(matchFields))
	matched := 0
	for _, f := range matchFields {
		ok := fieldsEqual(f.get(ocr), f.get(ekyc))
		fieldMatches[f.name] = ok
		if ok {
			matched++
		}
	}

	total := len(matchFields)
	pct := int(math.Round(100 * float64(matched) / float64(total)))

	return Result{
		IsVerified:      pct >= FieldMatchThreshold && faceScore >= FaceMatchThreshold,
		MatchPercentage: pct,
		FaceMatchScore:  faceScore,
		FieldMatches:    fieldMatches,
		MatchedCount:    matched,
		TotalFields:     total,
	}, nil
}

// fieldsEqual applies the normalized comparison: trim, lowercase, collapse
// internal whitespace. A field missing on either side counts as not matched.
func fieldsEqual(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
