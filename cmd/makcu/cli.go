package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makcu/makcu-go/makcu"
)

// Globals are shared by every subcommand and may come from flags, env vars
// or the YAML config file.
type Globals struct {
	Port string `help:"Serial port of the device; autodetected when empty." env:"MAKCU_PORT"`
	Log  struct {
		Level string `help:"Log level (debug|info|warn|error)." default:"info"`
		File  string `help:"Write logs to this file instead of stderr."`
	} `embed:"" prefix:"log."`
}

type CLI struct {
	Globals

	List    ListCmd    `cmd:"" help:"List candidate device ports."`
	Version VersionCmd `cmd:"" help:"Print the firmware version."`
	Click   ClickCmd   `cmd:"" help:"Click a mouse button."`
	Move    MoveCmd    `cmd:"" help:"Move the cursor by a relative offset."`
	Wheel   WheelCmd   `cmd:"" help:"Scroll the wheel."`
	Lock    LockCmd    `cmd:"" help:"Lock or unlock an input axis or button."`
	Monitor MonitorCmd `cmd:"" help:"Print physical button events as they happen."`
	Serial  SerialCmd  `cmd:"" help:"Read, spoof or reset the USB serial string."`
}

// withDevice connects, runs fn, and always disconnects.
func withDevice(g *Globals, logger *slog.Logger, fn func(d *makcu.Device) error) error {
	d := makcu.NewWithOptions(makcu.Options{Logger: logger})
	if err := d.Connect(g.Port); err != nil {
		return err
	}
	defer d.Disconnect()
	return fn(d)
}

type ListCmd struct{}

func (c *ListCmd) Run(g *Globals, logger *slog.Logger) error {
	devices, err := makcu.FindDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no candidate devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\t%s:%s\n", d.Port, d.Description, d.VID, d.PID)
	}
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		version, err := d.Version()
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	})
}

type ClickCmd struct {
	Button string `arg:"" default:"left" help:"Button to click (left|right|middle|side1|side2)."`
	Count  int    `help:"Number of clicks." default:"1"`
	Delay  time.Duration `help:"Pause between clicks." default:"50ms"`
}

func (c *ClickCmd) Run(g *Globals, logger *slog.Logger) error {
	button := makcu.ParseMouseButton(c.Button)
	if button == makcu.ButtonUnknown {
		return fmt.Errorf("unknown button %q", c.Button)
	}
	return withDevice(g, logger, func(d *makcu.Device) error {
		for i := 0; i < c.Count; i++ {
			if i > 0 {
				time.Sleep(c.Delay)
			}
			if err := d.Click(button); err != nil {
				return err
			}
		}
		return nil
	})
}

type MoveCmd struct {
	X        int `arg:"" help:"Horizontal offset."`
	Y        int `arg:"" help:"Vertical offset."`
	Segments int `help:"Interpolate the move over this many segments." default:"0"`
}

func (c *MoveCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		if c.Segments > 0 {
			return d.MouseMoveSmooth(c.X, c.Y, c.Segments)
		}
		return d.MouseMove(c.X, c.Y)
	})
}

type WheelCmd struct {
	Delta int `arg:"" help:"Scroll amount; negative scrolls down."`
}

func (c *WheelCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		return d.MouseWheel(c.Delta)
	})
}

type LockCmd struct {
	Target string `arg:"" help:"Lock target (x|y|left|right|middle|side1|side2)."`
	Off    bool   `help:"Unlock instead of lock."`
}

func (c *LockCmd) Run(g *Globals, logger *slog.Logger) error {
	target, err := parseLockTarget(c.Target)
	if err != nil {
		return err
	}
	return withDevice(g, logger, func(d *makcu.Device) error {
		return d.Lock(target, !c.Off)
	})
}

func parseLockTarget(s string) (makcu.LockTarget, error) {
	targets := map[string]makcu.LockTarget{
		"x": makcu.LockX, "y": makcu.LockY,
		"left": makcu.LockLeft, "right": makcu.LockRight, "middle": makcu.LockMiddle,
		"side1": makcu.LockSide1, "side2": makcu.LockSide2,
	}
	if t, ok := targets[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown lock target %q", s)
}

type MonitorCmd struct {
	Duration time.Duration `help:"Stop after this long; 0 runs until interrupted." default:"0"`
}

func (c *MonitorCmd) Run(g *Globals, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	d := makcu.NewWithOptions(makcu.Options{Logger: logger})
	d.SetButtonCallback(func(b makcu.MouseButton, pressed bool) {
		state := "released"
		if pressed {
			state = "pressed"
		}
		fmt.Printf("%s %s (mask %#02x)\n", b, state, d.ButtonMask())
	})
	d.SetConnectionCallback(func(connected bool) {
		if !connected {
			fmt.Println("device disconnected")
			stop()
		}
	})

	if err := d.Connect(g.Port); err != nil {
		return err
	}
	defer d.Disconnect()

	fmt.Println("monitoring buttons; press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}

type SerialCmd struct {
	Get   SerialGetCmd   `cmd:"" help:"Print the current USB serial string."`
	Set   SerialSetCmd   `cmd:"" help:"Spoof the USB serial string."`
	Reset SerialResetCmd `cmd:"" help:"Restore the factory USB serial string."`
}

type SerialGetCmd struct{}

func (c *SerialGetCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		serial, err := d.MouseSerial()
		if err != nil {
			return err
		}
		fmt.Println(serial)
		return nil
	})
}

type SerialSetCmd struct {
	Value string `arg:"" help:"Serial string to report to the host."`
}

func (c *SerialSetCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		return d.SetMouseSerial(c.Value)
	})
}

type SerialResetCmd struct{}

func (c *SerialResetCmd) Run(g *Globals, logger *slog.Logger) error {
	return withDevice(g, logger, func(d *makcu.Device) error {
		return d.ResetMouseSerial()
	})
}
