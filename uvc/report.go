package uvc

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var statusColor = map[Status]*color.Color{
	Unsupported: color.New(color.FgHiBlack),
	Readable:    color.New(color.FgCyan),
	ReadOnly:    color.New(color.FgYellow),
	Writable:    color.New(color.FgGreen),
	Failed:      color.New(color.FgRed),
}

// WriteDevices lists every enumerated device
func WriteDevices(w io.Writer, all []Info) {
	fmt.Fprintf(w, "Found %d USB devices in total\n", len(all))
	fmt.Fprintln(w, "\nAll USB Devices:")
	fmt.Fprintln(w, "--------------")
	uvc := 0
	for i, info := range all {
		name := info.ProductName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(w, "Device %d: %s - %s (bus %d, address %d)\n", i+1, name, info.ID(), info.Bus, info.Address)
		if info.UVC {
			uvc++
		}
	}
	fmt.Fprintf(w, "\nFound %d UVC camera devices\n", uvc)
}

// WriteReport prints the probe outcome for one camera
func WriteReport(w io.Writer, info Info, reports []ControlReport, writeTest bool) {
	fmt.Fprintf(w, "\n🎥 Analyzing UVC controls for %s (%s)\n", info.ProductName, info.ID())
	fmt.Fprintf(w, "   Manufacturer: %s, Serial: %s\n", info.Manufacturer, info.Serial)
	fmt.Fprintf(w, "   Video control: %v, video streaming: %v\n", info.VideoControl, info.VideoStreaming)

	fmt.Fprintln(w, "\nCamera Controls:")
	fmt.Fprintln(w, "----------------")

	found := false
	for _, r := range reports {
		if r.Status == Unsupported {
			continue
		}
		found = true
		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(r.Selector.Name))
		fmt.Fprintf(w, "  current: %d\n", r.Current)
		for _, attr := range []struct {
			name string
			v    Value
		}{
			{"min", r.Min},
			{"max", r.Max},
			{"resolution", r.Resolution},
			{"default", r.Default},
		} {
			if attr.v.OK {
				fmt.Fprintf(w, "  %s: %d\n", attr.name, attr.v.V)
			}
		}
		fmt.Fprintf(w, "  data length: %d\n", r.Length)
	}

	if !found {
		fmt.Fprintln(w, "No accessible controls found.")
		fmt.Fprintln(w, "This could be due to:")
		fmt.Fprintln(w, "1. Operating system restrictions on USB device access")
		fmt.Fprintln(w, "2. Camera not supporting standard UVC controls")
		fmt.Fprintln(w, "3. Need for higher privileges (try running with sudo)")
	}

	if writeTest {
		fmt.Fprintln(w, "\nTesting control write capability:")
	} else {
		fmt.Fprintln(w, "\nControl capability (write test disabled):")
	}
	for _, r := range reports {
		if r.Status == Unsupported {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", r.Selector.Name, statusColor[r.Status].Sprint(describe(r)))
	}
}

func describe(r ControlReport) string {
	switch r.Status {
	case Writable:
		return fmt.Sprintf("%s (Successfully set to %d)", r.Status, r.TestValue)
	case ReadOnly:
		return fmt.Sprintf("%s (Got %d instead of %d)", r.Status, r.ReadBack, r.TestValue)
	case Failed:
		return fmt.Sprintf("%s (%v)", r.Status, r.Err)
	default:
		return r.Status.String()
	}
}

// WriteUsage prints what a client needs to drive the camera
func WriteUsage(w io.Writer, info Info) {
	fmt.Fprintln(w, "\nUsage Instructions:")
	fmt.Fprintln(w, "-----------------")
	fmt.Fprintln(w, "To control this camera in your application, you'll need:")
	fmt.Fprintf(w, "1. Vendor ID: 0x%04x\n", info.Vendor)
	fmt.Fprintf(w, "2. Product ID: 0x%04x\n", info.Product)
	fmt.Fprintln(w, "3. For each control you want to set:")
	fmt.Fprintln(w, "   - Control selector (from the list above)")
	fmt.Fprintln(w, "   - Data length (1, 2, or 4 bytes)")
	fmt.Fprintln(w, "   - Min/Max values to stay within valid range")
	fmt.Fprintln(w, "Requests: bmRequestType 0x21, bRequest 0x01 (SET_CUR), wValue selector<<8")
}
