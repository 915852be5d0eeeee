package device

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

func tunConfig(name string) water.Config {
	config := water.Config{DeviceType: water.TUN}
	config.Name = name
	return config
}

// Configure assigns the address leased by the gateway to the interface
// and brings it up.
func (t *TUN) Configure(ipaddr string) error {
	addr, err := netlink.ParseAddr(ipaddr + "/32")
	if err != nil {
		return fmt.Errorf("Configure: invalid address %s: %w", ipaddr, err)
	}
	link, err := netlink.LinkByName(t.ifce.Name())
	if err != nil {
		return fmt.Errorf("Configure: failed to find link %s: %w", t.ifce.Name(), err)
	}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("Configure: failed to assign %s to %s: %w", ipaddr, t.ifce.Name(), err)
	}
	if err := netlink.LinkSetMTU(link, tunMTU); err != nil {
		return fmt.Errorf("Configure: failed to set MTU on %s: %w", t.ifce.Name(), err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("Configure: failed to bring up %s: %w", t.ifce.Name(), err)
	}
	log.WithField("device", t.ifce.Name()).WithField("address", ipaddr).Debug("configured tunnel interface")
	return nil
}
