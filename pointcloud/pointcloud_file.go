package pointcloud

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the encoding of the data section of a PCD file.
type PCDType int

const (
	// PCDAscii writes one text line per point.
	PCDAscii PCDType = iota
	// PCDBinary writes packed little endian records.
	PCDBinary
)

// lasValueRecord is the description of the VLR that stores per-point values.
const lasValueRecord = "dc|value"

// ErrEmptyLAS is returned when writing a cloud without points to a LAS file.
var ErrEmptyLAS = errors.New("LAS files need at least one point")

// ReadLAS reads the points of a LAS file in file order, with their colors and
// values when the file has them.
func ReadLAS(fn string) (_ PointCloud, err error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	n := lf.Header.NumberPoints
	values, err := lasValues(lf.VlrData, n)
	if err != nil {
		return nil, err
	}
	colored := lf.Header.PointFormatID == 2

	pc := NewWithPrealloc(n)
	for i := 0; i < n; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "reading LAS point %d", i)
		}
		var d Data
		if rgb := p.RgbData(); colored && rgb != nil {
			d = NewColoredData(color.NRGBA{
				R: uint8(rgb.Red >> 8),
				G: uint8(rgb.Green >> 8),
				B: uint8(rgb.Blue >> 8),
				A: 255,
			})
		}
		if values != nil {
			if d == nil {
				d = NewValueData(values[i])
			} else {
				d = d.SetValue(values[i])
			}
		}
		pos := p.PointData()
		if err := pc.Set(r3.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}, d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// lasValues decodes the value record, if present, into n values.
func lasValues(vlrs []lidario.VLR, n int) ([]int, error) {
	for _, vlr := range vlrs {
		if vlr.Description != lasValueRecord {
			continue
		}
		if len(vlr.BinaryData) < 8*n {
			return nil, errors.Errorf("LAS value record holds %d bytes, expected %d", len(vlr.BinaryData), 8*n)
		}
		values := make([]int, n)
		for i := range values {
			values[i] = int(int64(binary.LittleEndian.Uint64(vlr.BinaryData[8*i:])))
		}
		return values, nil
	}
	return nil, nil
}

// WriteLAS writes cloud to fn. Colored clouds use point format 2; values go
// into a VLR with one little endian int64 per point.
func WriteLAS(cloud PointCloud, fn string) (err error) {
	if cloud.Size() == 0 {
		return ErrEmptyLAS
	}
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	meta := cloud.MetaData()
	var header lidario.LasHeader
	if meta.HasColor {
		header.PointFormatID = 2
	}
	if err := lf.AddHeader(header); err != nil {
		return err
	}

	var values bytes.Buffer
	cloud.Iterate(func(pos r3.Vector, d Data) bool {
		if meta.HasValue {
			values.Write(binary.LittleEndian.AppendUint64(nil, uint64(pointValue(d))))
		}
		err = lf.AddLasPoint(lasRecord(pos, d, meta.HasColor))
		return err == nil
	})
	if err != nil || !meta.HasValue {
		return err
	}
	return lf.AddVLR(lidario.VLR{
		Description:             lasValueRecord,
		BinaryData:              values.Bytes(),
		RecordLengthAfterHeader: values.Len(),
	})
}

func lasRecord(pos r3.Vector, d Data, colored bool) lidario.LasPointer {
	rec := &lidario.PointRecord0{
		X: pos.X,
		Y: pos.Y,
		Z: pos.Z,
		// return 1 of 1
		BitField:      lidario.PointBitField{Value: 1 | 1<<3},
		PointSourceID: 1,
	}
	if !colored {
		return rec
	}
	rgb := &lidario.RgbData{Red: 0xffff, Green: 0xffff, Blue: 0xffff}
	if d != nil && d.HasColor() {
		r, g, b := d.RGB255()
		rgb = &lidario.RgbData{Red: uint16(r) << 8, Green: uint16(g) << 8, Blue: uint16(b) << 8}
	}
	return &lidario.PointRecord2{PointRecord0: rec, RGB: rgb}
}

func pointValue(d Data) int {
	if d == nil || !d.HasValue() {
		return 0
	}
	return d.Value()
}

// pcdColor packs a color as 0x00RRGGBB. Uncolored points are red.
func pcdColor(d Data) int {
	if d == nil || !d.HasColor() {
		return 0xff0000
	}
	r, g, b := d.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b)
}

// pcdField is one column of a PCD file. Exactly one of coord and integer is set.
type pcdField struct {
	name    string
	kind    string
	coord   func(r3.Vector) float64
	integer func(Data) int
}

func pcdFields(meta MetaData) []pcdField {
	fields := []pcdField{
		{name: "x", kind: "F", coord: func(p r3.Vector) float64 { return p.X }},
		{name: "y", kind: "F", coord: func(p r3.Vector) float64 { return p.Y }},
		{name: "z", kind: "F", coord: func(p r3.Vector) float64 { return p.Z }},
	}
	if meta.HasColor {
		fields = append(fields, pcdField{name: "rgb", kind: "I", integer: pcdColor})
	}
	if meta.HasValue {
		fields = append(fields, pcdField{name: "label", kind: "U", integer: pointValue})
	}
	return fields
}

// ToPCD writes the cloud as an unorganized PCD v0.7 file. Point values are
// written as a label column.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDAscii:
		data = "ascii"
	case PCDBinary:
		data = "binary"
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}

	fields := pcdFields(cloud.MetaData())
	names := make([]string, len(fields))
	kinds := make([]string, len(fields))
	ones := make([]string, len(fields))
	fours := make([]string, len(fields))
	for i, f := range fields {
		names[i], kinds[i], ones[i], fours[i] = f.name, f.kind, "1", "4"
	}
	header := fmt.Sprintf("VERSION .7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n"+
		"WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		strings.Join(names, " "), strings.Join(fours, " "), strings.Join(kinds, " "), strings.Join(ones, " "),
		cloud.Size(), cloud.Size(), data)
	if _, err := io.WriteString(out, header); err != nil {
		return err
	}

	var err error
	buf := make([]byte, 0, 64)
	cloud.Iterate(func(pos r3.Vector, d Data) bool {
		buf = appendPCDPoint(buf[:0], outputType, fields, pos, d)
		_, err = out.Write(buf)
		return err == nil
	})
	return err
}

func appendPCDPoint(buf []byte, outputType PCDType, fields []pcdField, pos r3.Vector, d Data) []byte {
	for i, f := range fields {
		if outputType == PCDBinary {
			if f.coord != nil {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(f.coord(pos))))
			} else {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(f.integer(d)))
			}
			continue
		}
		if i > 0 {
			buf = append(buf, ' ')
		}
		if f.coord != nil {
			buf = strconv.AppendFloat(buf, f.coord(pos), 'f', 6, 64)
		} else {
			buf = strconv.AppendInt(buf, int64(f.integer(d)), 10)
		}
	}
	if outputType == PCDAscii {
		buf = append(buf, '\n')
	}
	return buf
}
