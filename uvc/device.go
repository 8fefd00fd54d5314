package uvc

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

// Video class interface codes
const (
	classVideo         = 0x0e
	subclassControl    = 0x01
	subclassStreaming  = 0x02
	noControlInterface = -1
)

// Interface is the part of an interface descriptor the probe cares about
type Interface struct {
	Number   int
	Class    int
	SubClass int
}

// Info describes one enumerated USB device
type Info struct {
	Vendor       uint16
	Product      uint16
	Bus          int
	Address      int
	Manufacturer string
	ProductName  string
	Serial       string

	UVC              bool
	VideoControl     bool
	VideoStreaming   bool
	ControlInterface int
}

// ID formats vendor:product the usual way
func (i Info) ID() string {
	return fmt.Sprintf("%04x:%04x", i.Vendor, i.Product)
}

// Classify marks video class devices and finds the first video control
// interface.
func (i *Info) Classify(ifaces []Interface) {
	i.ControlInterface = noControlInterface
	for _, in := range ifaces {
		if in.Class != classVideo {
			continue
		}
		i.UVC = true
		switch in.SubClass {
		case subclassControl:
			i.VideoControl = true
			if i.ControlInterface == noControlInterface {
				i.ControlInterface = in.Number
			}
		case subclassStreaming:
			i.VideoStreaming = true
		}
	}
}

// Camera is an opened UVC device ready for probing
type Camera struct {
	Info Info
	dev  *gousb.Device
}

// Control implements Transport
func (c *Camera) Control(rType, request uint8, value, index uint16, data []byte) (int, error) {
	return c.dev.Control(rType, request, value, index, data)
}

// Close releases the device handle
func (c *Camera) Close() error {
	return c.dev.Close()
}

// Bus is an open libusb context
type Bus struct {
	ctx *gousb.Context
}

// OpenBus initialises libusb
func OpenBus() *Bus {
	return &Bus{ctx: gousb.NewContext()}
}

// Close releases the libusb context
func (b *Bus) Close() error {
	return b.ctx.Close()
}

func interfacesOf(desc *gousb.DeviceDesc) []Interface {
	var out []Interface
	for _, cfg := range desc.Configs {
		for _, in := range cfg.Interfaces {
			for _, alt := range in.AltSettings {
				out = append(out, Interface{
					Number:   alt.Number,
					Class:    int(alt.Class),
					SubClass: int(alt.SubClass),
				})
			}
		}
	}
	return out
}

// Scan enumerates every device and opens the UVC ones. All devices are
// returned in all; cameras holds the opened UVC devices, which the caller
// must close. Open failures on individual devices are logged, not returned.
func (b *Bus) Scan() (all []Info, cameras []*Camera, err error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		info := Info{
			Vendor:  uint16(desc.Vendor),
			Product: uint16(desc.Product),
			Bus:     desc.Bus,
			Address: desc.Address,
		}
		info.Classify(interfacesOf(desc))
		all = append(all, info)
		return info.UVC
	})
	if err != nil {
		log.WithError(err).Warn("some devices could not be opened")
	}
	if len(devs) == 0 && err != nil {
		return all, nil, errors.Wrap(err, "open usb devices")
	}

	for _, dev := range devs {
		info := Info{
			Vendor:  uint16(dev.Desc.Vendor),
			Product: uint16(dev.Desc.Product),
			Bus:     dev.Desc.Bus,
			Address: dev.Desc.Address,
		}
		info.Classify(interfacesOf(dev.Desc))
		info.Manufacturer = stringOr(dev.Manufacturer)
		info.ProductName = stringOr(dev.Product)
		info.Serial = stringOr(dev.SerialNumber)

		if err := dev.SetAutoDetach(true); err != nil {
			log.WithError(err).WithField("device", info.ID()).Warn("kernel driver auto-detach unavailable")
		}
		cameras = append(cameras, &Camera{Info: info, dev: dev})

		for i := range all {
			if all[i].Bus == info.Bus && all[i].Address == info.Address {
				all[i] = info
			}
		}
	}
	return all, cameras, nil
}

func stringOr(read func() (string, error)) string {
	s, err := read()
	if err != nil || s == "" {
		return "Unknown"
	}
	return s
}
