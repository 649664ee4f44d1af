package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// RawRecord represents one scraped news entry exactly as displayed.
// All fields are plain text; no numeric or temporal parsing happens anywhere.
type RawRecord struct {
	Time      string
	Sentiment string
	Summary   string
	FullTweet string
	Tickers   []string
	Sector    string
}

// Unit pairs a record with its fingerprint, queued for one outbound send.
type Unit struct {
	Record      RawRecord
	Fingerprint string
}

// Fingerprint computes the dedup identity of a record: sha256 over the
// canonical field concatenation. Absent fields serialize as empty strings so
// the field order stays fixed.
func Fingerprint(r RawRecord) string {
	canonical := strings.Join([]string{
		r.Time,
		r.Sentiment,
		r.Summary,
		r.FullTweet,
		strings.Join(r.Tickers, ","),
		r.Sector,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// FilterNew drops records whose fingerprint is already in seen, preserving
// input order. Duplicates within the batch itself are also collapsed.
func FilterNew(records []RawRecord, seen map[string]struct{}) []Unit {
	units := make([]Unit, 0, len(records))
	inBatch := make(map[string]struct{}, len(records))

	for _, r := range records {
		fp := Fingerprint(r)
		if _, ok := seen[fp]; ok {
			continue
		}
		if _, ok := inBatch[fp]; ok {
			continue
		}
		inBatch[fp] = struct{}{}
		units = append(units, Unit{Record: r, Fingerprint: fp})
	}
	return units
}

// Chronological reverses the source adapter's newest-first emission order so
// units are delivered oldest-first.
func Chronological(units []Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[len(units)-1-i] = u
	}
	return out
}
