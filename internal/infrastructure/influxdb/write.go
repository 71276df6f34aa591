package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHealthSample records the derived health signals from one
// telemetry message as a device_health point. The device id is the only
// tag so series cardinality stays bounded by fleet size.
//
// The write is non-blocking; the point is batched and sent in the
// background. Called after the reconciler has normalised the sample, so
// a Pi load list and a tablet's bare number land as the same field.
func (c *Client) WriteHealthSample(deviceID string, tempC, loadAvg, memUsedPct float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_health",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"temp_c":       tempC,
			"load":         loadAvg,
			"mem_used_pct": memUsedPct,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
