package uvc

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type control struct {
	length   int // the only data length answered
	cur      uint32
	min, max uint32
	hasRange bool
	readOnly bool
	failSet  bool
}

// fakeCamera answers class requests for the selectors it knows
type fakeCamera struct {
	controls map[uint8]*control
	index    uint16
	writes   []uint32
}

func (f *fakeCamera) Control(rType, request uint8, value, index uint16, data []byte) (int, error) {
	f.index = index
	c, ok := f.controls[uint8(value>>8)]
	if !ok {
		return 0, errors.New("pipe error")
	}

	if rType == requestOut {
		if request != SetCur {
			return 0, errors.New("unexpected request")
		}
		if c.failSet {
			return 0, errors.New("stall")
		}
		var full [4]byte
		copy(full[:], data)
		v := binary.LittleEndian.Uint32(full[:])
		f.writes = append(f.writes, v)
		if !c.readOnly {
			c.cur = v
		}
		return len(data), nil
	}

	if len(data) != c.length {
		return 0, errors.New("overflow")
	}
	var v uint32
	switch request {
	case GetCur:
		v = c.cur
	case GetMin, GetMax:
		if !c.hasRange {
			return 0, errors.New("stall")
		}
		v = c.min
		if request == GetMax {
			v = c.max
		}
	case GetRes:
		v = 1
	case GetDef:
		return 0, nil
	}
	var full [4]byte
	binary.LittleEndian.PutUint32(full[:], v)
	copy(data, full[:])
	return len(data), nil
}

func byName(reports []ControlReport, name string) ControlReport {
	for _, r := range reports {
		if r.Selector.Name == name {
			return r
		}
	}
	return ControlReport{}
}

func TestProbeStatuses(t *testing.T) {
	cam := &fakeCamera{controls: map[uint8]*control{
		0x02: {length: 2, cur: 128, min: 0, max: 255, hasRange: true},
		0x03: {length: 1, cur: 10, min: 0, max: 10, hasRange: true, readOnly: true},
		0x0b: {length: 4, cur: 500, min: 1, max: 10000, hasRange: true, failSet: true},
		0x0c: {length: 2, cur: 40},
	}}
	p := &Prober{T: cam, Interface: 0, Unit: -1, WriteTest: true}

	reports := p.Probe()
	if len(reports) != len(Selectors) {
		t.Fatalf("got %d reports", len(reports))
	}

	brightness := byName(reports, "brightness")
	if brightness.Status != Writable || brightness.Length != 2 || brightness.TestValue != 129 || !brightness.Restored {
		t.Errorf("brightness = %+v", brightness)
	}
	if cam.controls[0x02].cur != 128 {
		t.Errorf("brightness not restored: %d", cam.controls[0x02].cur)
	}
	if !brightness.Resolution.OK || brightness.Resolution.V != 1 || brightness.Default.OK {
		t.Errorf("optional attributes = %+v / %+v", brightness.Resolution, brightness.Default)
	}

	contrast := byName(reports, "contrast")
	if contrast.Status != ReadOnly || contrast.TestValue != 0 || contrast.ReadBack != 10 {
		t.Errorf("contrast = %+v (test value wraps to min past max)", contrast)
	}

	exposure := byName(reports, "exposure_time")
	if exposure.Status != Failed || exposure.Err == nil || exposure.Length != 4 {
		t.Errorf("exposure = %+v", exposure)
	}

	focus := byName(reports, "focus")
	if focus.Status != Readable || focus.Current != 40 {
		t.Errorf("focus without range = %+v", focus)
	}

	if zoom := byName(reports, "zoom"); zoom.Status != Unsupported || zoom.Err == nil {
		t.Errorf("zoom = %+v", zoom)
	}
}

func TestProbeWithoutWriteTest(t *testing.T) {
	cam := &fakeCamera{controls: map[uint8]*control{
		0x02: {length: 1, cur: 5, min: 0, max: 9, hasRange: true},
	}}
	p := &Prober{T: cam, Unit: -1}

	r := byName(p.Probe(), "brightness")
	if r.Status != Readable {
		t.Errorf("status = %v, want readable", r.Status)
	}
	if len(cam.writes) != 0 {
		t.Errorf("writes issued without write test: %v", cam.writes)
	}
}

func TestProbeIndex(t *testing.T) {
	tests := []struct {
		iface uint8
		unit  int
		want  uint16
	}{
		{0, -1, 0x0000},
		{2, -1, 0x0200},
		{0, 2, 0x0200},
		{1, 3, 0x0301},
	}
	for _, tt := range tests {
		cam := &fakeCamera{controls: map[uint8]*control{0x02: {length: 1}}}
		p := &Prober{T: cam, Interface: tt.iface, Unit: tt.unit}
		p.probeControl(Selectors[0])
		if cam.index != tt.want {
			t.Errorf("interface %d unit %d: wIndex = %#04x, want %#04x", tt.iface, tt.unit, cam.index, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	var info Info
	info.Classify([]Interface{
		{Number: 0, Class: 0x01, SubClass: 0x01},
		{Number: 1, Class: classVideo, SubClass: subclassStreaming},
		{Number: 2, Class: classVideo, SubClass: subclassControl},
		{Number: 3, Class: classVideo, SubClass: subclassControl},
	})
	if !info.UVC || !info.VideoControl || !info.VideoStreaming || info.ControlInterface != 2 {
		t.Errorf("info = %+v", info)
	}

	var plain Info
	plain.Classify([]Interface{{Number: 0, Class: 0x03}})
	if plain.UVC || plain.ControlInterface != noControlInterface {
		t.Errorf("non-video device classified as %+v", plain)
	}
}

func TestWriteReport(t *testing.T) {
	info := Info{Vendor: 0x046d, Product: 0x0825, ProductName: "Webcam"}
	reports := []ControlReport{
		{Selector: Selectors[0], Status: Writable, Length: 2, Current: 128, TestValue: 129, Min: Value{0, true}, Max: Value{255, true}},
		{Selector: Selectors[1], Status: Unsupported},
	}

	var buf bytes.Buffer
	WriteReport(&buf, info, reports, true)
	out := buf.String()
	for _, want := range []string{"046d:0825", "BRIGHTNESS:", "current: 128", "max: 255", "WRITABLE (Successfully set to 129)"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "CONTRAST") {
		t.Error("unsupported control listed")
	}

	buf.Reset()
	WriteReport(&buf, info, reports[1:], false)
	if !strings.Contains(buf.String(), "No accessible controls found.") {
		t.Errorf("empty report:\n%s", buf.String())
	}
}

func TestSelectorCodes(t *testing.T) {
	want := map[string]uint8{
		"brightness":    0x02,
		"contrast":      0x03,
		"hue":           0x06,
		"saturation":    0x07,
		"sharpness":     0x08,
		"gamma":         0x09,
		"white_balance": 0x0a,
		"exposure_time": 0x0b,
		"focus":         0x0c,
		"zoom":          0x0d,
	}
	if len(Selectors) != len(want) {
		t.Fatalf("%d selectors, want %d", len(Selectors), len(want))
	}
	for i, sel := range Selectors {
		if code, ok := want[sel.Name]; !ok || code != sel.Code {
			t.Errorf("selector %d = %s/0x%02x", i, sel.Name, sel.Code)
		}
		if i > 0 && Selectors[i-1].Code >= sel.Code {
			t.Errorf("selector %s out of order", sel.Name)
		}
	}
}
