// Package influxdb is the bridge's optional time series sink.
//
// The reconciler derives one health sample (temperature, load, memory
// used) from every telemetry message and hands it to this client, which
// batches points and writes them in the background. SQLite remains the
// source of truth for events and device logs; Influx exists for the
// Grafana-style "temperature over the last week" view that a relational
// history table answers poorly.
//
// Connect returns ErrDisabled when the sink is switched off in config,
// and the bridge then runs with a nil sink. Write failures arrive on
// the SetOnError callback since the write path is non-blocking.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Error("influx write", "error", err) })
//	client.WriteHealthSample("pi-7", 54.2, 0.41, 62.5)
package influxdb
