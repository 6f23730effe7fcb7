package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"LettuceClassifier/internal/entity"
)

const TimestampLayout = "2006-01-02 15:04:05"

var HistoryHeader = []string{"Date/Time", "Image Name", "Classification", "Confidence"}

// FormatConfidence always renders exactly two decimals.
func FormatConfidence(confidence float64) string {
	return strconv.FormatFloat(confidence, 'f', 2, 64)
}

func HistoryRow(entry entity.HistoryEntry) []string {
	return []string{
		entry.Timestamp.Format(TimestampLayout),
		entry.ImageName,
		entry.Classification,
		FormatConfidence(entry.Confidence),
	}
}

// WriteHistoryCSV writes the header followed by one row per entry in order.
func WriteHistoryCSV(w io.Writer, entries []entity.HistoryEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(HistoryHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := cw.Write(HistoryRow(entry)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
