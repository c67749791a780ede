// Command ifitctl is a thin operator CLI over the session package, in the
// same spirit as the teacher's kr command: one urfave/cli app, one
// subcommand per operation, fatih/color for pass/fail output. It is
// convenience wiring around the protocol core, not a feature of its own.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/ianchi/ifit"
	"github.com/ianchi/ifit/session"
	"github.com/ianchi/ifit/transport/bletransport"
)

func printFatal(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	os.Exit(1)
}

func dialSession(c *cli.Context) (*session.Session, context.Context, error) {
	addrFlag := c.GlobalString("addr")
	if addrFlag == "" {
		return nil, nil, fmt.Errorf("ifitctl: -addr is required (BLE MAC address of the equipment)")
	}
	mac, err := net.ParseMAC(addrFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("ifitctl: -addr %q: %w", addrFlag, err)
	}

	cfg, err := session.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, nil, err
	}

	t := bletransport.New(mac)
	s := session.New(t, cfg.Timeouts())

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts().ConnectTimeout+5*time.Second)
	defer cancel()
	if err := s.Connect(connectCtx); err != nil {
		return nil, nil, err
	}

	if code := c.GlobalString("code"); code != "" {
		var activation [session.ActivationCodeSize]byte
		raw, err := hex.DecodeString(code)
		if err != nil || len(raw) != session.ActivationCodeSize {
			s.Disconnect()
			return nil, nil, fmt.Errorf("ifitctl: -code must be %d hex-encoded bytes", session.ActivationCodeSize)
		}
		copy(activation[:], raw)
		if err := s.Enable(ctx, activation); err != nil {
			s.Disconnect()
			return nil, nil, err
		}
	}

	return s, ctx, nil
}

func infoCommand(c *cli.Context) error {
	s, ctx, err := dialSession(c)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	ids, err := s.EquipmentInformation(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("characteristics: %v\n", ids)

	if commands, err := s.SupportedCommands(ctx); err == nil {
		fmt.Printf("supported commands: %v\n", commands)
	}
	if ref, err := s.EquipmentReference(ctx); err == nil {
		fmt.Printf("reference: %d\n", ref)
	}
	if fw, err := s.EquipmentFirmware(ctx); err == nil {
		fmt.Printf("firmware: %s\n", fw)
	}
	if serial, err := s.EquipmentSerial(ctx); err == nil {
		fmt.Printf("serial: %s\n", serial)
	}
	color.Green("ok")
	return nil
}

func parseIDs(args []string) ([]byte, error) {
	ids := make([]byte, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("ifitctl: invalid characteristic id %q", a)
		}
		ids = append(ids, byte(n))
	}
	return ids, nil
}

func getCommand(c *cli.Context) error {
	ids, err := parseIDs(c.Args())
	if err != nil {
		return err
	}
	s, ctx, err := dialSession(c)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	values, err := s.WriteAndRead(ctx, nil, ids)
	if err != nil {
		return err
	}
	printValues(ids, values)
	return nil
}

func printValues(ids []byte, values map[byte]ifit.Value) {
	sorted := append([]byte(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		ch, ok := ifit.DefaultCatalog.ByID(id)
		name := fmt.Sprintf("id%d", id)
		if ok {
			name = ch.Name
		}
		fmt.Printf("%s = %s\n", name, values[id].String())
	}
}

// parseValue converts a command-line string to an ifit.Value using the
// catalog's converter for ch to pick the right variant.
func parseValue(ch *ifit.Characteristic, s string) (ifit.Value, error) {
	switch ch.Converter {
	case ifit.ConvUInt8:
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants a uint8: %w", ch.Name, err)
		}
		return ifit.UInt8Value(byte(n)), nil
	case ifit.ConvUInt16:
		n, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants a uint16: %w", ch.Name, err)
		}
		return ifit.UInt16Value(uint16(n)), nil
	case ifit.ConvUInt32:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants a uint32: %w", ch.Name, err)
		}
		return ifit.UInt32Value(uint32(n)), nil
	case ifit.ConvDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants a decimal number: %w", ch.Name, err)
		}
		return ifit.DoubleValue(f), nil
	case ifit.ConvScaled32:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants a decimal number: %w", ch.Name, err)
		}
		return ifit.Scaled32Value(f), nil
	case ifit.ConvBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return ifit.Value{}, fmt.Errorf("ifitctl: %s wants true/false: %w", ch.Name, err)
		}
		return ifit.BooleanValue(b), nil
	default:
		return ifit.Value{}, fmt.Errorf("ifitctl: %s is not settable from the command line", ch.Name)
	}
}

func setCommand(c *cli.Context) error {
	writes := map[byte]ifit.Value{}
	for _, arg := range c.Args() {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("ifitctl: set arguments must look like id=value, got %q", arg)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil || id < 0 || id > 255 {
			return fmt.Errorf("ifitctl: invalid characteristic id %q", parts[0])
		}
		ch, ok := ifit.DefaultCatalog.ByID(byte(id))
		if !ok {
			return &ifit.UnknownCharacteristic{ID: byte(id)}
		}
		v, err := parseValue(ch, parts[1])
		if err != nil {
			return err
		}
		writes[byte(id)] = v
	}
	if len(writes) == 0 {
		return fmt.Errorf("ifitctl: set requires at least one id=value argument")
	}

	s, ctx, err := dialSession(c)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	if _, err := s.WriteAndRead(ctx, writes, nil); err != nil {
		return err
	}
	color.Green("ok")
	return nil
}

func monitorCommand(c *cli.Context) error {
	ids, err := parseIDs(c.Args())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("ifitctl: monitor requires at least one characteristic id")
	}

	s, ctx, err := dialSession(c)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	ch, err := s.Monitor(ctx, ids)
	if err != nil {
		return err
	}
	for values := range ch {
		printValues(ids, values)
		fmt.Println("---")
	}
	return nil
}

func enableCommand(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return fmt.Errorf("ifitctl: enable <36-byte hex activation code>")
	}
	raw, err := hex.DecodeString(c.Args()[0])
	if err != nil || len(raw) != session.ActivationCodeSize {
		return fmt.Errorf("ifitctl: activation code must be %d hex-encoded bytes", session.ActivationCodeSize)
	}

	s, ctx, err := dialSession(c)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	var code [session.ActivationCodeSize]byte
	copy(code[:], raw)
	if err := s.Enable(ctx, code); err != nil {
		return err
	}
	color.Green("authenticated")
	return nil
}

func main() {
	ifit.SetupLogging("ifitctl", logging.WARNING, false)

	app := cli.NewApp()
	app.Name = "ifitctl"
	app.Usage = "connect to and control one piece of iFit-protocol equipment over BLE"
	app.Version = ifit.ProtocolVersion.String()
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr", Usage: "BLE MAC address of the equipment"},
		cli.StringFlag{Name: "config", Usage: "path to a YAML config file of session timeouts"},
		cli.StringFlag{Name: "code", Usage: "hex-encoded activation code, applied with Enable right after connecting"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "print the equipment's characteristic set, reference id, firmware and serial",
			Action: infoCommand,
		},
		{
			Name:   "get",
			Usage:  "ifitctl get <id> [<id>...] -- read one or more characteristics",
			Action: getCommand,
		},
		{
			Name:   "set",
			Usage:  "ifitctl set <id>=<value> [...] -- write one or more characteristics (requires -code)",
			Action: setCommand,
		},
		{
			Name:   "monitor",
			Usage:  "ifitctl monitor <id> [<id>...] -- poll characteristics until interrupted",
			Action: monitorCommand,
		},
		{
			Name:   "enable",
			Usage:  "ifitctl enable <36-byte hex activation code> -- authenticate the session",
			Action: enableCommand,
		},
	}
	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}

	if err := app.Run(os.Args); err != nil {
		printFatal("%s", err)
	}
}
