// Package customer manages the organisations behind the screens.
//
// A customer owns one or more four digit setup codes. An installer types
// a code into a fresh device; the device broadcasts it, the bridge looks
// it up and answers with the customer's display settings (start URL,
// kiosk mode, screen timeout) and optionally auto-approves the device.
// The resulting device-to-customer link is kept as an assignment, with
// the code retained for audit.
//
// Locations live here too: one row per device, replaced on every
// geolocation fix, so fleet views can put each customer's screens on a
// map without scanning the event history.
package customer
