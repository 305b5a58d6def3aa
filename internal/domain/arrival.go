package domain

import "fmt"

// ArrivalRecord is the status of the next vehicle to reach the boarding stop.
// Two records are equal iff their Text is equal.
type ArrivalRecord struct {
	ArrivalTime    string // "HH:MM" as reported by the page
	LastPassedStop string
	StopsAway      string // e.g. "3個前"
	Text           string
}

// NewArrivalRecord builds a record and its rendered text.
func NewArrivalRecord(arrivalTime, lastPassed, stopsAway string) ArrivalRecord {
	return ArrivalRecord{
		ArrivalTime:    arrivalTime,
		LastPassedStop: lastPassed,
		StopsAway:      stopsAway,
		Text:           fmt.Sprintf("🚎 %s\n%sを通過\n（%s）", arrivalTime, lastPassed, stopsAway),
	}
}
