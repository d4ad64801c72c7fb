// Command frontier-uhc is the controller firmware for the six-shelf
// universal holding cabinet: it drives the twelve shelf heaters against
// the wall-outlet current budget, watches the thermistors and the line
// power, and coordinates the two display units over the message bus.
//
// Usage:
//
//	frontier-uhc <controllerIP> <gui1IP> <gui2IP>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/command"
	"github.com/mattyIce83/frontier-uhc/config"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/gpio"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/monitor"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/power"
	"github.com/mattyIce83/frontier-uhc/publish"
	"github.com/mattyIce83/frontier-uhc/rtd"
	"github.com/mattyIce83/frontier-uhc/state"
)

// configFile is the optional bench-setup override.
const configFile = "/etc/frontier-uhc.yaml"

// joinDeadline bounds how long shutdown waits for the loops to exit
// before forcing the loads off anyway.
const joinDeadline = 3 * time.Second

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "Usage: frontier-uhc <controllerIP> <gui1IP> <gui2IP>")
		os.Exit(-1)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(log, os.Args[1], os.Args[2], os.Args[3]); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("unrecoverable failure")
		os.Exit(-1)
	}
}

func run(log zerolog.Logger, controllerIP, gui1IP, gui2IP string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	cfg.ControllerIP = controllerIP
	cfg.GUI1IP = gui1IP
	cfg.GUI2IP = gui2IP
	identity := config.ReadIdentity()

	sys := state.NewSystem()
	queue := eventlog.NewQueue()

	// A previous soft shutdown completed; clear its sentinel.
	os.Remove(config.SoftShutdownFile)

	logDir := cfg.LogDir
	if _, err := os.Stat(cfg.SDCardMountPoint); err != nil {
		sys.SetSDCardPresent(false)
		sys.RaiseAlarm(msg.AlarmSDCardMissing, "E-200")
		queue.Put(eventlog.Error("E-200", "SD card", "log card missing, using fallback directory"))
		log.Warn().Msg("SD card missing")
		logDir = cfg.FallbackLogDir
	} else {
		sys.SetSDCardPresent(true)
	}

	// Hardware bring-up.  Any failure here is unrecoverable.
	var pins [heater.Count]heater.Switch
	for i, path := range gpio.HeaterPaths {
		out, err := gpio.NewOutput(path)
		if err != nil {
			return err
		}
		defer out.Close()
		pins[i] = out
	}
	relay, err := gpio.NewOutput(gpio.Relay220Path)
	if err != nil {
		return err
	}
	defer relay.Close()
	relay.Set(true)

	var fanOn [monitor.FanCount]*gpio.Output
	var fanTach [monitor.FanCount]*gpio.Input
	for i := 0; i < monitor.FanCount; i++ {
		if fanOn[i], err = gpio.NewOutput(gpio.FanOnPaths[i]); err != nil {
			return err
		}
		defer fanOn[i].Close()
		if fanTach[i], err = gpio.NewInput(gpio.FanTachPaths[i]); err != nil {
			return err
		}
		defer fanTach[i].Close()
	}

	rev, err := readBoardRevision()
	if err != nil {
		log.Warn().Err(err).Msg("board revision straps unreadable, assuming rev 0")
	}
	sys.SetBoardRevision(rev)
	log.Info().Int("revision", rev).Str("firmware", config.FirmwareVersion).Msg("controller starting")

	warnOut, err := gpio.NewInput(gpio.WarnOutPath)
	if err != nil {
		return err
	}
	defer warnOut.Close()

	spi, err := rtd.OpenMuxSPI(cfg.MuxSPIDevice)
	if err != nil {
		return err
	}
	defer spi.Close()
	adc, err := rtd.OpenADC(cfg.ADCPathPattern)
	if err != nil {
		return err
	}
	defer adc.Close()
	meter, err := power.OpenMeter(cfg.PowerSPIDevice)
	if err != nil {
		return err
	}
	defer meter.Close()

	bank := heater.NewBank(pins, identity.SetpointLowLimit, identity.SetpointHighLimit)
	fans := monitor.NewFans(fanOn, fanTach, [monitor.FanCount]*gpio.Input{}, queue, log)
	scanner := rtd.NewScanner(spi, adc, meter, bank, sys, queue, cfg.CalibrationDir, log)

	// Bus sockets.
	zctx, err := zmq4.NewContext()
	if err != nil {
		return err
	}
	defer zctx.Term()

	cssPub, err := bus.NewPublisher(zctx, controllerIP, msg.PortCurrentSystemState)
	if err != nil {
		return err
	}
	defer cssPub.Close()
	rtdPub, err := bus.NewPublisher(zctx, controllerIP, msg.PortRTDData)
	if err != nil {
		return err
	}
	defer rtdPub.Close()
	fwPub, err := bus.NewPublisher(zctx, controllerIP, msg.PortFirmwareResult)
	if err != nil {
		return err
	}
	defer fwPub.Close()

	respPorts := [2]int{msg.PortCommandResponse1, msg.PortCommandResponse2}
	guiIPs := [2]string{gui1IP, gui2IP}
	cmdPorts := [2]int{msg.PortCommandGUI1, msg.PortCommandGUI2}
	hbPorts := [2]int{msg.PortHeartbeatGUI1, msg.PortHeartbeatGUI2}
	tsPorts := [2]int{msg.PortTimeSyncGUI1, msg.PortTimeSyncGUI2}

	handler := &command.Handler{
		Bank: bank, Sys: sys, Fans: fans, Queue: queue, Log: log,
		ControllerIP: controllerIP,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for gui := 1; gui <= 2; gui++ {
		gui := gui
		respPub, err := bus.NewPublisher(zctx, controllerIP, respPorts[gui-1])
		if err != nil {
			return err
		}
		defer respPub.Close()
		cmdSub, err := bus.NewSubscriber(zctx, guiIPs[gui-1], cmdPorts[gui-1], msg.TopicSystemCommand)
		if err != nil {
			return err
		}
		defer cmdSub.Close()
		hbSub, err := bus.NewSubscriber(zctx, guiIPs[gui-1], hbPorts[gui-1], msg.TopicHeartbeat)
		if err != nil {
			return err
		}
		defer hbSub.Close()
		tsSub, err := bus.NewSubscriber(zctx, guiIPs[gui-1], tsPorts[gui-1], msg.TopicTimeSync)
		if err != nil {
			return err
		}
		defer tsSub.Close()

		cl := &command.Listener{GUI: gui, Sub: cmdSub, Resp: respPub, Handler: handler, Log: log}
		hl := &command.HeartbeatListener{GUI: gui, Sub: hbSub, Sys: sys, Log: log}
		tl := &command.TimeSyncListener{GUI: gui, Sub: tsSub, Sys: sys, Log: log}
		g.Go(func() error { return cl.Run(gctx) })
		g.Go(func() error { return hl.Run(gctx) })
		g.Go(func() error { return tl.Run(gctx) })
	}

	fwSub, err := bus.NewSubscriber(zctx, gui1IP, msg.PortFirmwareUpdate, msg.TopicFirmwareUpdate)
	if err != nil {
		return err
	}
	defer fwSub.Close()
	fw := &command.FirmwareListener{
		Sub: fwSub, Result: fwPub, Queue: queue, Log: log, ControllerIP: controllerIP,
	}
	g.Go(func() error { return fw.Run(gctx) })

	liveness := &monitor.Liveness{
		Sys: sys, Bank: bank, Queue: queue, Log: log, Interface: cfg.EthernetInterface,
	}
	pub := &publish.Publisher{
		CSS: cssPub, RTD: rtdPub,
		Bank: bank, Sys: sys, Scanner: scanner, Fans: fans,
		Tickers:  []publish.Ticker{liveness, fans},
		Queue:    queue,
		Identity: identity, ControllerIP: controllerIP, GUI1IP: gui1IP, GUI2IP: gui2IP,
		Log: log,
	}
	supervisor := &heater.Supervisor{Bank: bank, Sys: sys, Queue: queue, Log: log}
	consumer := &eventlog.Consumer{
		Queue: queue, Dir: logDir,
		UnitType: identity.ModelNumber, Firmware: config.FirmwareVersion, Log: log,
	}
	sag := &power.SagWatcher{
		WarnOut: warnOut,
		Shed:    power.Shedder{Relay220: relay, Heaters: bank, Fans: fans},
		Queue:   queue, Log: log,
		OnSag: stop,
	}

	g.Go(func() error { return scanner.Run(gctx) })
	g.Go(func() error { return supervisor.Run(gctx) })
	g.Go(func() error { return pub.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return sag.Run(gctx) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	<-gctx.Done()
	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(joinDeadline):
		log.Warn().Msg("join deadline expired")
	}
	// Whatever state the loops were left in, the loads go off.
	bank.ForceAllOff()
	fans.AllOff()
	log.Info().Msg("controller stopped")
	return runErr
}

// readBoardRevision decodes the three ID straps.
func readBoardRevision() (int, error) {
	var bits [3]bool
	for i, path := range gpio.BoardIDPaths {
		in, err := gpio.NewInput(path)
		if err != nil {
			return 0, err
		}
		bits[i], err = in.Read()
		in.Close()
		if err != nil {
			return 0, err
		}
	}
	return gpio.BoardRevision(bits[0], bits[1], bits[2]), nil
}
