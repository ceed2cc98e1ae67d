// Package discovery announces and finds onboarding portals over mDNS.
//
// While the portal is collecting credentials, an Advertiser registers it as
// an "_http._tcp" service with the TXT record "wifiportal=1". A phone or
// laptop joined to the onboarding network can then find it without knowing
// the access point's address. Scanner browses for such services and ignores
// every other HTTP service on the network.
//
// # Usage Example
//
//	adv := &discovery.Advertiser{Instance: "WifiPortal Setup"}
//	stop, err := adv.Advertise(80)
//	if err != nil {
//	    return err
//	}
//	defer stop()
//
//	portals, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
