// Package config loads and saves the wifiportal configuration file.
//
// The file is YAML. Every field has a default (applied with
// github.com/creasty/defaults before the file is decoded), so an empty or
// missing file is a valid configuration.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wifiportal/config.yaml or $HOME/.config/wifiportal/config.yaml
//   - macOS: $HOME/.config/wifiportal/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiportal\config.yaml
//
// The credentials file defaults to wifi.json in the same directory.
//
// # Example
//
//	version: 1
//	connection_timeout: 30s
//	poll_interval: 500ms
//	max_attempts: 0
//	access_point:
//	  ssid: WifiPortal Setup
//	  password: "1234567890"
//	portal:
//	  port: 80
//	  advertise: true
//	radio:
//	  backend: nmcli
//	  interface: wlan0
package config
