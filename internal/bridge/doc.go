// Package bridge is the heart of the telemetry and command plane.
//
// It consumes every message the fleet publishes over MQTT, classifies it
// by topic shape, and applies it to the authoritative device record and
// the append-only history. All mutation flows through a single consumer
// goroutine, so concurrent broker deliveries for one device never race.
//
// Key Components:
//   - Classify: maps topics in the devices/, fully/ and provision/
//     namespaces onto typed intents
//   - Reconciler: merges status reports, appends telemetry and events,
//     and narrates transitions and threshold breaches into the device log
//   - Deduper: per device, per condition cooldown for repeated alerts
//   - CommandRelay: publishes operator commands in the target family's
//     wire format, injecting the per-device relay credential
//   - Provisioner: answers code-based bootstrap requests with a retained
//     configuration response
//
// Usage:
//
//	b := bridge.New(client, reconciler, provisioner, logger)
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
//	defer b.Stop()
package bridge
