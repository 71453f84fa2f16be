package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"powerpulse/internal/model"
)

// LoadParser parses SLDC load CSV exports.
//
// Expected format:
//
//	Date,TimeSlot,DELHI,BRPL,BYPL,NDPL,NDMC,MES
//	2024-06-11,18:00,6541.2,2010.4,1405.7,1822.3,210.9,91.9
//
// TimeSlot may also carry a slot range ("18:00 - 18:05"); the slot start is
// used. Each row fans out into one LoadRecord per region column.
type LoadParser struct {
	// Location applied to parsed timestamps. Defaults to UTC.
	Location *time.Location
}

var loadHeader = []string{"Date", "TimeSlot", "DELHI", "BRPL", "BYPL", "NDPL", "NDMC", "MES"}

func (p *LoadParser) Parse(r io.Reader) ([]model.LoadRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header, loadHeader); err != nil {
		return nil, err
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	var records []model.LoadRecord
	lineNum := 1 // header was line 1

	for {
		lineNum++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		recs, err := p.parseRow(row, lineNum, loc)
		if err != nil {
			// Skip unparseable rows (e.g. "NA" placeholders).
			continue
		}
		records = append(records, recs...)
	}

	return records, nil
}

func (p *LoadParser) parseRow(row []string, lineNum int, loc *time.Location) ([]model.LoadRecord, error) {
	if len(row) < len(loadHeader) {
		return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNum, len(loadHeader), len(row))
	}

	ts, err := parseDateSlot(strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), loc)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNum, err)
	}

	records := make([]model.LoadRecord, 0, len(model.Regions))
	for i, region := range model.Regions {
		raw := strings.TrimSpace(row[2+i])
		mw, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing %s load %q: %w", lineNum, region, raw, err)
		}
		records = append(records, model.LoadRecord{
			Timestamp: ts,
			Region:    region,
			LoadMW:    mw,
		})
	}
	return records, nil
}

// parseDateSlot joins a Date column and a TimeSlot column into one timestamp.
func parseDateSlot(date, slot string, loc *time.Location) (time.Time, error) {
	// Slot ranges keep only the start.
	if i := strings.IndexAny(slot, "-–"); i >= 0 {
		slot = strings.TrimSpace(slot[:i])
	}

	for _, layout := range []string{"2006-01-02 15:04", "02-01-2006 15:04", "02/01/2006 15:04"} {
		if ts, err := time.ParseInLocation(layout, date+" "+slot, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q %q", date, slot)
}

func headerError(expected, got []string) error {
	return fmt.Errorf("unexpected CSV header: want %q, got %q",
		strings.Join(expected, ","), strings.Join(got, ","))
}

func validateHeader(header, expected []string) error {
	if len(header) < len(expected) {
		return headerError(expected, header)
	}
	for i, col := range expected {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return headerError(expected, header)
		}
	}
	return nil
}
