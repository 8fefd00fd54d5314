// Package uvc probes the processing-unit controls of USB Video Class
// cameras and reports, per control, whether it can be read and written.
package uvc

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "uvc")

// Class-specific request codes
const (
	SetCur uint8 = 0x01
	GetCur uint8 = 0x81
	GetMin uint8 = 0x82
	GetMax uint8 = 0x83
	GetRes uint8 = 0x84
	GetDef uint8 = 0x87

	// bmRequestType for class requests addressed to an interface
	requestIn  uint8 = 0xa1
	requestOut uint8 = 0x21
)

// Selector names one control
type Selector struct {
	Name string
	Code uint8
}

// Selectors are the controls probed, in report order
var Selectors = []Selector{
	{"brightness", 0x02},
	{"contrast", 0x03},
	{"hue", 0x06},
	{"saturation", 0x07},
	{"sharpness", 0x08},
	{"gamma", 0x09},
	{"white_balance", 0x0a},
	{"exposure_time", 0x0b},
	{"focus", 0x0c},
	{"zoom", 0x0d},
}

// dataLengths are tried in order until GET_CUR answers
var dataLengths = []int{1, 2, 4}

// Transport issues control transfers to one device
type Transport interface {
	Control(rType, request uint8, value, index uint16, data []byte) (int, error)
}

// Status is the outcome of probing one control
type Status int

const (
	// Unsupported: GET_CUR failed at every data length
	Unsupported Status = iota
	// Readable: GET_CUR answered and no write test ran
	Readable
	// ReadOnly: SET_CUR was accepted but the value did not change
	ReadOnly
	// Writable: the test value was read back
	Writable
	// Failed: a transfer during the write test returned an error
	Failed
)

func (s Status) String() string {
	switch s {
	case Unsupported:
		return "UNSUPPORTED"
	case Readable:
		return "READABLE"
	case ReadOnly:
		return "READ-ONLY"
	case Writable:
		return "WRITABLE"
	default:
		return "ERROR"
	}
}

// Value is an optional control attribute
type Value struct {
	V  int64
	OK bool
}

// ControlReport is everything learned about one control
type ControlReport struct {
	Selector   Selector
	Status     Status
	Length     int
	Current    int64
	Min        Value
	Max        Value
	Resolution Value
	Default    Value
	// TestValue is the value written by the write test
	TestValue int64
	// ReadBack is what GET_CUR returned after the write
	ReadBack int64
	Restored bool
	Err      error
}

// Prober runs the probe against one video control interface
type Prober struct {
	T         Transport
	Interface uint8
	// Unit is the entity id placed in the high byte of wIndex. A negative
	// value puts the interface number there instead, which is what most
	// cameras answered to with the legacy diagnostic.
	Unit      int
	WriteTest bool
}

func (p *Prober) index() uint16 {
	if p.Unit < 0 {
		return uint16(p.Interface) << 8
	}
	return uint16(p.Unit)<<8 | uint16(p.Interface)
}

// Probe reports on every selector in order
func (p *Prober) Probe() []ControlReport {
	out := make([]ControlReport, 0, len(Selectors))
	for _, sel := range Selectors {
		r := p.probeControl(sel)
		log.WithFields(logrus.Fields{
			"control": sel.Name,
			"status":  r.Status,
		}).Debug("control probed")
		out = append(out, r)
	}
	return out
}

func (p *Prober) probeControl(sel Selector) ControlReport {
	r := ControlReport{Selector: sel, Status: Unsupported}
	value := uint16(sel.Code) << 8

	for _, n := range dataLengths {
		cur, err := p.get(GetCur, value, n)
		if err != nil {
			r.Err = err
			continue
		}
		r.Length = n
		r.Current = cur
		r.Status = Readable
		r.Err = nil
		break
	}
	if r.Status == Unsupported {
		return r
	}

	r.Min = p.optional(GetMin, value, r.Length)
	r.Max = p.optional(GetMax, value, r.Length)
	r.Resolution = p.optional(GetRes, value, r.Length)
	r.Default = p.optional(GetDef, value, r.Length)

	if p.WriteTest && r.Min.OK && r.Max.OK {
		p.writeTest(&r, value)
	}
	return r
}

// writeTest sets current+1 (or min past max), reads it back and restores
// the original value when the write took effect.
func (p *Prober) writeTest(r *ControlReport, value uint16) {
	test := r.Current + 1
	if test > r.Max.V {
		test = r.Min.V
	}
	r.TestValue = test

	if err := p.set(value, r.Length, test); err != nil {
		r.Status, r.Err = Failed, errors.Wrap(err, "SET_CUR")
		return
	}
	got, err := p.get(GetCur, value, r.Length)
	if err != nil {
		r.Status, r.Err = Failed, errors.Wrap(err, "read back")
		return
	}
	r.ReadBack = got

	if got != test {
		r.Status = ReadOnly
		return
	}
	r.Status = Writable
	if err := p.set(value, r.Length, r.Current); err != nil {
		log.WithError(err).Warnf("could not restore %s to %d", r.Selector.Name, r.Current)
		return
	}
	r.Restored = true
}

func (p *Prober) get(request uint8, value uint16, n int) (int64, error) {
	buf := make([]byte, n)
	got, err := p.T.Control(requestIn, request, value, p.index(), buf)
	if err != nil {
		return 0, err
	}
	if got == 0 {
		return 0, errors.Errorf("empty response to request 0x%02x", request)
	}
	return decode(buf[:got]), nil
}

func (p *Prober) optional(request uint8, value uint16, n int) Value {
	v, err := p.get(request, value, n)
	if err != nil {
		return Value{}
	}
	return Value{V: v, OK: true}
}

func (p *Prober) set(value uint16, n int, v int64) error {
	_, err := p.T.Control(requestOut, SetCur, value, p.index(), encode(v, n))
	return err
}

// decode reads up to four little-endian bytes as an unsigned value
func decode(b []byte) int64 {
	var full [4]byte
	copy(full[:], b)
	return int64(binary.LittleEndian.Uint32(full[:]))
}

func encode(v int64, n int) []byte {
	var full [4]byte
	binary.LittleEndian.PutUint32(full[:], uint32(v))
	return full[:n]
}
