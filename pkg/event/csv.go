package event

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

var csvHeader = []string{"Title", "Date", "Time", "Notes", "Recurring", "Created"}

// RenderCSV writes one row per event, in the given order, after a header row.
func RenderCSV(events []Event) (string, error) {
	var b bytes.Buffer
	writer := csv.NewWriter(&b)

	if err := writer.Write(csvHeader); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	for _, e := range events {
		row := []string{
			e.Title,
			e.Date,
			e.Time,
			e.Notes,
			strconv.FormatBool(e.Recurring),
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	return b.String(), nil
}
