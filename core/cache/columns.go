package cache

import (
	"encoding/json"
	"fmt"

	"github.com/kilianp07/fillcast/core/model"
)

// columns is the on-disk layout: one array per field.
type columns struct {
	SiteID       []string  `json:"site_id"`
	Date         []string  `json:"date"`
	FillPct      []float64 `json:"fill_pct"`
	PredVolumeM3 []float64 `json:"pred_volume_m3"`
	OverflowProb []float64 `json:"overflow_prob"`
}

// EncodeColumns serialises points column by column.
func EncodeColumns(points []model.ForecastPoint) ([]byte, error) {
	c := columns{
		SiteID:       make([]string, len(points)),
		Date:         make([]string, len(points)),
		FillPct:      make([]float64, len(points)),
		PredVolumeM3: make([]float64, len(points)),
		OverflowProb: make([]float64, len(points)),
	}
	for i, p := range points {
		c.SiteID[i] = p.SiteID
		c.Date[i] = p.Date.Format(model.DateLayout)
		c.FillPct[i] = p.FillPct
		c.PredVolumeM3[i] = p.PredVolumeM3
		c.OverflowProb[i] = p.OverflowProb
	}
	return json.Marshal(c)
}

// DecodeColumns is the inverse of EncodeColumns.
func DecodeColumns(data []byte) ([]model.ForecastPoint, error) {
	var c columns
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	n := len(c.SiteID)
	if len(c.Date) != n || len(c.FillPct) != n || len(c.PredVolumeM3) != n || len(c.OverflowProb) != n {
		return nil, fmt.Errorf("decode columns: column length mismatch")
	}
	points := make([]model.ForecastPoint, n)
	for i := range points {
		d, err := model.ParseDay(c.Date[i])
		if err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		points[i] = model.ForecastPoint{
			SiteID:       c.SiteID[i],
			Date:         d,
			FillPct:      c.FillPct[i],
			PredVolumeM3: c.PredVolumeM3[i],
			OverflowProb: c.OverflowProb[i],
		}
	}
	return points, nil
}
