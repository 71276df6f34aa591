// Package fullyrelay runs the LAN-side companion process for Fully
// Kiosk tablets.
//
// Fully Kiosk exposes a remote admin HTTP interface but speaks no MQTT
// beyond broadcasting deviceInfo. The relay closes that gap: it learns
// each tablet's address from the broadcasts, receives commands from the
// bridge over MQTT, executes them as HTTP calls on the local network,
// and publishes the outcome as an acknowledgement.
//
// The relay keeps its device registry in a JSON state file so known
// tablets are reachable immediately after a restart, before their next
// announcement.
package fullyrelay
