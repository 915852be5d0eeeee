package device

import (
	"bytes"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"
	"github.com/songgao/water"
)

// utun interface names cannot be chosen on macOS, the requested name is
// ignored.
func tunConfig(string) water.Config {
	return water.Config{DeviceType: water.TUN}
}

// Configure assigns the address leased by the gateway to the interface
// and brings it up. On macOS utun devices are point to point, so the
// leased address is used as both local and destination address.
func (t *TUN) Configure(ipaddr string) error {
	setAddr := exec.Command("ifconfig", t.ifce.Name(), "inet", ipaddr, ipaddr, "mtu", fmt.Sprintf("%d", tunMTU), "up")
	if err := runCmd(setAddr); err != nil {
		return fmt.Errorf("Configure: failed to set address on %s: %w", t.ifce.Name(), err)
	}
	log.WithField("device", t.ifce.Name()).WithField("address", ipaddr).Debug("configured tunnel interface")
	return nil
}

func runCmd(cmd *exec.Cmd) error {
	buf := new(bytes.Buffer)
	cmd.Stderr = buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("runCmd: failed to execute command (stderr: %s): %w", buf.String(), err)
	}
	return nil
}
