package telemetry

// BuildHeatmapPoints converts grouped cells into heatmap points. Cells
// without a metric average are skipped; a zero sample count is reported as 1.
func BuildHeatmapPoints(cells []CellAggregate) []HeatmapPoint {
	points := make([]HeatmapPoint, 0, len(cells))
	for _, c := range cells {
		if c.MetricAvg == nil {
			continue
		}
		samples := int(c.SampleCount)
		if samples <= 0 {
			samples = 1
		}
		p := HeatmapPoint{
			Latitude:       c.Latitude,
			Longitude:      c.Longitude,
			Intensity:      *c.MetricAvg,
			Samples:        samples,
			AntennaGainDbi: c.AntennaGain,
			TxPowerDbm:     c.TxPower,
			HardwareModel:  c.HardwareModel,
		}
		if !c.LatestSeen.IsZero() {
			seen := c.LatestSeen.UTC()
			p.LatestSeen = &seen
		}
		points = append(points, p)
	}
	return points
}

// NewHeatmapResponse summarizes points with their intensity range.
// MinValue and MaxValue stay nil when there are no points.
func NewHeatmapResponse(metric Metric, points []HeatmapPoint) HeatmapResponse {
	resp := HeatmapResponse{
		Metric: metric,
		Points: points,
	}
	if resp.Points == nil {
		resp.Points = []HeatmapPoint{}
	}
	if len(points) == 0 {
		return resp
	}

	lo, hi := points[0].Intensity, points[0].Intensity
	for _, p := range points[1:] {
		if p.Intensity < lo {
			lo = p.Intensity
		}
		if p.Intensity > hi {
			hi = p.Intensity
		}
	}
	resp.MinValue = &lo
	resp.MaxValue = &hi
	return resp
}
