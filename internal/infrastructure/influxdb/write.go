package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteModuleSensors writes module-level environmental readings.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - transceiverID: Physical slot index of the module
//   - temperatureC: Module temperature in celsius
//   - supplyVoltage: Supply voltage in volts
func (c *Client) WriteModuleSensors(transceiverID int, temperatureC, supplyVoltage float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"module_sensors",
		map[string]string{
			"transceiver_id": strconv.Itoa(transceiverID),
		},
		map[string]interface{}{
			"temperature_c":  temperatureC,
			"supply_voltage": supplyVoltage,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLaneBER writes a per-lane PRBS bit-error-rate sample.
//
// Lock state is recorded as a field so dashboards can correlate BER
// spikes with lock loss.
//
// Parameters:
//   - transceiverID: Physical slot index of the module
//   - side: Module side ("system" or "line")
//   - lane: Lane index within the side
//   - ber: Instantaneous bit-error rate
//   - maxBER: Accumulated maximum bit-error rate
//   - locked: Whether the PRBS checker currently has pattern lock
func (c *Client) WriteLaneBER(transceiverID int, side string, lane int, ber, maxBER float64, locked bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"lane_ber",
		map[string]string{
			"transceiver_id": strconv.Itoa(transceiverID),
			"side":           side,
			"lane":           strconv.Itoa(lane),
		},
		map[string]interface{}{
			"ber":     ber,
			"max_ber": maxBER,
			"locked":  locked,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteVdmStats writes versatile diagnostics monitoring pre-FEC BER values.
//
// Parameters:
//   - transceiverID: Physical slot index of the module
//   - mediaAvg, mediaMax: Pre-FEC BER on the media side
//   - hostAvg, hostMax: Pre-FEC BER on the host side
func (c *Client) WriteVdmStats(transceiverID int, mediaAvg, mediaMax, hostAvg, hostMax float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"vdm_stats",
		map[string]string{
			"transceiver_id": strconv.Itoa(transceiverID),
		},
		map[string]interface{}{
			"pre_fec_ber_media_avg": mediaAvg,
			"pre_fec_ber_media_max": mediaMax,
			"pre_fec_ber_host_avg":  hostAvg,
			"pre_fec_ber_host_max":  hostMax,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRemediationCount writes the cumulative remediation counter for a
// module. Recorded on every successful remediation so alert rules can
// fire on modules that keep needing recovery.
//
// Parameters:
//   - transceiverID: Physical slot index of the module
//   - count: Total successful remediations since process start
func (c *Client) WriteRemediationCount(transceiverID int, count int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"remediation",
		map[string]string{
			"transceiver_id": strconv.Itoa(transceiverID),
		},
		map[string]interface{}{
			"count": count,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "switch-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
