package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"traffic-telemetry-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// importColumns are the headers a road CSV must carry; extra columns are ignored.
var importColumns = []string{"ID", "Lat_start", "Long_start", "Lat_end", "Long_end", "Length", "Speed"}

type ImportResult struct {
	Rows         int `json:"rows"`
	RoadsCreated int `json:"roads_created"`
	ReadsCreated int `json:"reads_created"`
}

// ImportRoads loads "Road <ID>" segments and one speed read per CSV row. Roads are
// matched on name and segment, and a read with the same value on the same road is not
// repeated, so importing a file twice changes nothing. Any bad row aborts the import.
func (s *RoadService) ImportRoads(ctx context.Context, r io.Reader, at time.Time) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, want := range importColumns {
		if _, ok := cols[want]; !ok {
			return ImportResult{}, fmt.Errorf("csv is missing column %q", want)
		}
	}

	var res ImportResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for line := 2; ; line++ {
			rec, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			row, err := parseImportRow(rec, cols)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			res.Rows++

			road, created, err := importRoad(tx, row)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if created {
				res.RoadsCreated++
			}

			var dup int64
			if err := tx.Model(&models.Read{}).
				Where("road_id = ? AND read_value = ?", road.ID, row.speed).
				Count(&dup).Error; err != nil {
				return fmt.Errorf("line %d: check read: %w", line, err)
			}
			if dup > 0 {
				continue
			}
			read := models.Read{RoadID: road.ID, ReadValue: row.speed, ReadAt: at.UTC()}
			if err := tx.Create(&read).Error; err != nil {
				return fmt.Errorf("line %d: create read: %w", line, err)
			}
			res.ReadsCreated++
		}
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

type importRow struct {
	name    string
	segment models.LineString
	length  float64
	speed   decimal.Decimal
}

func parseImportRow(rec []string, cols map[string]int) (importRow, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, field(name))
		}
		return v, nil
	}

	id := field("ID")
	if id == "" {
		return importRow{}, errors.New("empty ID")
	}
	var coords [4]float64
	for i, name := range []string{"Lat_start", "Long_start", "Lat_end", "Long_end"} {
		v, err := num(name)
		if err != nil {
			return importRow{}, err
		}
		coords[i] = v
	}
	length, err := num("Length")
	if err != nil {
		return importRow{}, err
	}
	if length < 0 {
		return importRow{}, fmt.Errorf("negative Length %v", length)
	}
	speed, err := decimal.NewFromString(field("Speed"))
	if err != nil {
		return importRow{}, fmt.Errorf("invalid Speed %q", field("Speed"))
	}
	verr := &ValidationError{}
	validateSpeedValue("Speed", speed, verr)
	if speed.IsNegative() {
		verr.add("Speed", "Ensure this value is greater than or equal to 0.")
	}
	if !verr.empty() {
		return importRow{}, verr
	}

	seg := models.NewLineString([2]float64{coords[1], coords[0]}, [2]float64{coords[3], coords[2]})
	if err := validateSegment(seg); err != nil {
		return importRow{}, err
	}
	return importRow{name: "Road " + id, segment: seg, length: length, speed: speed}, nil
}

func importRoad(tx *gorm.DB, row importRow) (models.Road, bool, error) {
	var road models.Road
	err := tx.Where("name = ? AND segment_hash = ?", row.name, row.segment.Hash()).First(&road).Error
	if err == nil {
		return road, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Road{}, false, fmt.Errorf("find road: %w", err)
	}
	road = models.Road{Name: row.name, Segment: datatypes.NewJSONType(row.segment), Length: row.length}
	if err := tx.Create(&road).Error; err != nil {
		return models.Road{}, false, fmt.Errorf("create road: %w", err)
	}
	return road, true, nil
}
