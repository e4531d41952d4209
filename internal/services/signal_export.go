package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/irfndi/crossover-go/internal/models"
)

var signalCSVHeader = []string{"Date", "Short", "Long", "Signal", "Position"}

// WriteSignalsCSV writes one row per signal point, dates in RFC 3339.
func WriteSignalsCSV(w io.Writer, signals []models.SignalPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(signalCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range signals {
		record := []string{
			p.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatFloat(p.ShortAvg, 'f', -1, 64),
			strconv.FormatFloat(p.LongAvg, 'f', -1, 64),
			strconv.Itoa(p.Signal),
			strconv.Itoa(p.Position),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
