// Package radio abstracts the wifi hardware the orchestrator drives.
//
// A Radio exposes two roles: station (joining an existing network) and
// access point (broadcasting the onboarding network). Joining is
// asynchronous; callers poll Status until the link reports an address, a
// terminal failure, or their own timeout elapses.
//
// # Backends
//
//   - Simulator: in-memory, deterministic. Used by tests and by
//     `wifiportal --radio sim` for demos without hardware.
//   - NMCLI: NetworkManager via the nmcli command line client (Linux).
//
// # Status Codes
//
// Status values follow the CYW43 link codes:
//
//	 0  idle
//	 1  connecting
//	 2  joined, no address yet (undocumented intermediate code)
//	 3  got address
//	-1  connect failed
//	-2  no access point found
//	-3  bad authentication
//
// Any other code is passed through unchanged.
//
// # Errors
//
// Failures to bring a role up or down are returned as *Error. They indicate
// missing or broken hardware and are not meant to be retried.
package radio
