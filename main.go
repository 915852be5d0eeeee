package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"

	"github.com/go-snx/go-snx/snx"
	"github.com/go-snx/go-snx/snx/device"
	"github.com/go-snx/go-snx/snx/tunnel"
)

const version = "local-build"

func main() {
	usage := fmt.Sprintf(`go-snx %s - SSL-VPN tunnel client

Usage:
  snx connect --server=<host> --user=<name> [--password=<pass>] [--tun=<name>] [--reauth] [--info-port=<port>] [options]
  snx version
  snx -h | --help

Options:
  -v --verbose          Enable Debug Logging.
  -t --trace            Enable Trace Logging (dump every packet).
  --server=<host>       Hostname of the VPN gateway.
  --user=<name>         User name for authentication.
  --password=<pass>     Password. Falls back to the SNX_PASSWORD environment variable.
  --tun=<name>          Name for the TUN interface. The OS picks one if omitted.
  --reauth              Renew credentials before the session lifetime expires.
  --info-port=<port>    Expose session info on http://127.0.0.1:<port>/tunnel.
  -h --help             Show this screen.

The connect command authenticates against the gateway, establishes the
encrypted tunnel, assigns the leased address to a TUN interface and
bridges packets until the connection dies or the process is interrupted.
`, version)

	arguments, err := docopt.ParseDoc(usage)
	if err != nil {
		log.Fatal(err)
	}

	traceLevelEnabled, _ := arguments.Bool("--trace")
	verboseLoggingEnabled, _ := arguments.Bool("--verbose")
	if traceLevelEnabled {
		log.Info("Set Trace mode")
		log.SetLevel(log.TraceLevel)
	} else if verboseLoggingEnabled {
		log.Info("Set Debug mode")
		log.SetLevel(log.DebugLevel)
	}

	if shouldPrintVersion, _ := arguments.Bool("version"); shouldPrintVersion {
		fmt.Println(version)
		return
	}

	server, _ := arguments.String("--server")
	user, _ := arguments.String("--user")
	password, _ := arguments.String("--password")
	if password == "" {
		password = os.Getenv("SNX_PASSWORD")
	}
	tunName, _ := arguments.String("--tun")
	reauth, _ := arguments.Bool("--reauth")
	infoPort, _ := arguments.Int("--info-port")

	params := snx.TunnelParams{
		ServerName: server,
		UserName:   user,
		Password:   password,
		TunName:    tunName,
		Reauth:     reauth,
	}

	if err := connect(params, infoPort); err != nil {
		log.Fatal(err)
	}
}

func connect(params snx.TunnelParams, infoPort int) error {
	ctx := context.Background()
	client := tunnel.NewClient(params)

	sessionID, cookie, err := client.Authenticate(ctx, "")
	if err != nil {
		return err
	}

	session, err := client.CreateTunnel(ctx, sessionID, cookie)
	if err != nil {
		return err
	}
	defer session.Close()

	reply, err := session.ClientHello()
	if err != nil {
		return err
	}

	tun, err := device.Open(params.TunName)
	if err != nil {
		return err
	}
	if err := tun.Configure(reply.OfficeMode.IPAddr); err != nil {
		tun.Close()
		return err
	}
	log.WithField("device", tun.Name()).WithField("address", reply.OfficeMode.IPAddr).Info("tunnel established")

	if infoPort != 0 {
		go func() {
			if err := tunnel.ServeTunnelInfo(session, infoPort); err != nil {
				log.WithError(err).Error("tunnel info api failed")
			}
		}()
	}

	// Closing the TUN device ends its packet stream, which makes Run
	// return cleanly.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		log.Infof("os signal:%d received, closing..", sig)
		tun.Close()
	}()

	return session.Run(ctx, tun)
}
