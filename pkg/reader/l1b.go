// Package reader decodes binary airborne laser scanner (ALS) L1B files.
//
// A file starts with a big-endian header whose first byte is the header size,
// followed by one uint32 timestamp (seconds of the day) per scan line and the
// scan lines themselves. Each scan line holds the timestamp, latitude,
// longitude and elevation of its shots as big-endian float64 arrays.
//
// Only the header and the line timestamps are read when a file is opened.
// Scan lines are read on demand with ReadAt, so several segments of one file
// can be read concurrently.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"alsdem/internal/models"
	"alsdem/pkg/logging"
)

var (
	// ErrUnsupportedHeader is returned for unknown header sizes
	ErrUnsupportedHeader = errors.New("unsupported ALS L1B header")

	// ErrTimeRange is returned when a requested time range cannot be served
	ErrTimeRange = errors.New("invalid time range")
)

// layout describes the header of one file version
type layout struct {
	size int

	// width of the shots per line field in bytes
	shotsPerLineBytes int
}

// layoutFor returns the header layout selected by the header size byte
func layoutFor(size byte) (layout, bool) {
	switch size {
	case 36:
		return layout{size: 36, shotsPerLineBytes: 1}, true
	case 37:
		return layout{size: 37, shotsPerLineBytes: 2}, true
	}
	return layout{}, false
}

// lineFields lists the float64 arrays of a scan line in file order
var lineFields = [...]string{
	models.FieldTimestamp,
	models.FieldLatitude,
	models.FieldLongitude,
	models.FieldElevation,
}

// Header is the decoded file header
type Header struct {
	// Size of the header in bytes
	Size int

	ScanLines         uint32
	DataPointsPerLine uint16
	BytesPerLine      uint16
	BytesSecLine      uint64

	Year  uint16
	Month int8
	Day   int8

	// StartTimeSec and StopTimeSec are seconds of the day
	StartTimeSec uint32
	StopTimeSec  uint32

	DeviceName string
}

// Date returns the acquisition day at 00:00 UTC
func (h Header) Date() time.Time {
	return time.Date(int(h.Year), time.Month(h.Month), int(h.Day), 0, 0, 0, 0, time.UTC)
}

// CenterBeamIndex returns the index of the center shot of a scan line
func (h Header) CenterBeamIndex() float64 {
	return float64(int(h.DataPointsPerLine)-1) / 2
}

// ParseHeader decodes the file header
func ParseHeader(r io.ReaderAt) (Header, error) {
	var size [1]byte
	if _, err := r.ReadAt(size[:], 0); err != nil {
		return Header{}, fmt.Errorf("error reading header size: %w", err)
	}
	l, ok := layoutFor(size[0])
	if !ok {
		return Header{}, fmt.Errorf("%w: header size %d (should be 36 or 37)", ErrUnsupportedHeader, size[0])
	}

	buf := make([]byte, l.size)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return Header{}, fmt.Errorf("error reading header: %w", err)
	}

	be := binary.BigEndian
	h := Header{Size: l.size}
	p := 1
	h.ScanLines = be.Uint32(buf[p:])
	p += 4
	if l.shotsPerLineBytes == 1 {
		h.DataPointsPerLine = uint16(buf[p])
	} else {
		h.DataPointsPerLine = be.Uint16(buf[p:])
	}
	p += l.shotsPerLineBytes
	h.BytesPerLine = be.Uint16(buf[p:])
	p += 2
	h.BytesSecLine = be.Uint64(buf[p:])
	p += 8
	h.Year = be.Uint16(buf[p:])
	p += 2
	h.Month = int8(buf[p])
	h.Day = int8(buf[p+1])
	p += 2
	h.StartTimeSec = be.Uint32(buf[p:])
	p += 4
	h.StopTimeSec = be.Uint32(buf[p:])
	p += 4
	h.DeviceName = strings.TrimRight(string(buf[p:p+8]), "\x00 ")
	return h, nil
}

// Marshal encodes the header in the layout selected by h.Size
func (h Header) Marshal() ([]byte, error) {
	l, ok := layoutFor(byte(h.Size))
	if !ok || h.Size > math.MaxInt8 {
		return nil, fmt.Errorf("%w: header size %d", ErrUnsupportedHeader, h.Size)
	}
	buf := make([]byte, 0, l.size)
	be := binary.BigEndian
	buf = append(buf, byte(l.size))
	buf = be.AppendUint32(buf, h.ScanLines)
	if l.shotsPerLineBytes == 1 {
		if h.DataPointsPerLine > math.MaxUint8 {
			return nil, fmt.Errorf("%d shots per line do not fit a %d byte header", h.DataPointsPerLine, l.size)
		}
		buf = append(buf, byte(h.DataPointsPerLine))
	} else {
		buf = be.AppendUint16(buf, h.DataPointsPerLine)
	}
	buf = be.AppendUint16(buf, h.BytesPerLine)
	buf = be.AppendUint64(buf, h.BytesSecLine)
	buf = be.AppendUint16(buf, h.Year)
	buf = append(buf, byte(h.Month), byte(h.Day))
	buf = be.AppendUint32(buf, h.StartTimeSec)
	buf = be.AppendUint32(buf, h.StopTimeSec)
	var name [8]byte
	copy(name[:], h.DeviceName)
	buf = append(buf, name[:]...)
	return buf, nil
}

// File is an opened L1B file
type File struct {
	Path   string
	Header Header

	// LineTimestamp holds the seconds of the day of every scan line
	LineTimestamp []uint32

	f *os.File
}

// Open reads the header and the line timestamps of an L1B file
func Open(path string) (*File, error) {
	log := logging.With("reader")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening ALS file: %w", err)
	}

	h, err := ParseHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().
		Str("file", path).
		Int("byte_size", h.Size).
		Uint32("scan_lines", h.ScanLines).
		Uint16("data_points_per_line", h.DataPointsPerLine).
		Uint16("bytes_per_line", h.BytesPerLine).
		Uint64("bytes_sec_line", h.BytesSecLine).
		Str("date", h.Date().Format("2006-01-02")).
		Uint32("start_time_sec", h.StartTimeSec).
		Uint32("stop_time_sec", h.StopTimeSec).
		Str("device_name", h.DeviceName).
		Msg("header")

	if h.ScanLines == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: file has no scan lines", path)
	}
	if h.BytesSecLine < 4*uint64(h.ScanLines) {
		f.Close()
		return nil, fmt.Errorf("%s: line timestamp block of %d bytes is too small for %d lines", path, h.BytesSecLine, h.ScanLines)
	}
	if int(h.BytesPerLine) < len(lineFields)*8*int(h.DataPointsPerLine) {
		f.Close()
		return nil, fmt.Errorf("%s: %d bytes per line cannot hold %d shots", path, h.BytesPerLine, h.DataPointsPerLine)
	}

	buf := make([]byte, 4*int(h.ScanLines))
	if _, err := f.ReadAt(buf, int64(h.Size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: error reading line timestamps: %w", path, err)
	}
	ts := make([]uint32, h.ScanLines)
	for i := range ts {
		ts[i] = binary.BigEndian.Uint32(buf[4*i:])
	}

	return &File{Path: path, Header: h, LineTimestamp: ts, f: f}, nil
}

// Close closes the underlying file
func (f *File) Close() error {
	return f.f.Close()
}

// TimeBounds returns the first and last line timestamp in seconds of the day
func (f *File) TimeBounds() (start, stop uint32) {
	return f.LineTimestamp[0], f.LineTimestamp[len(f.LineTimestamp)-1]
}

// ValidateTimeRange checks a range in seconds of the day against the file.
// Ranges that only partially overlap the file are accepted with a warning.
func (f *File) ValidateTimeRange(start, stop uint32) error {
	fstart, fstop := f.TimeBounds()
	if start > stop {
		return fmt.Errorf("%w: start time %d after stop time %d", ErrTimeRange, start, stop)
	}
	if start > fstop || stop < fstart {
		return fmt.Errorf("%w: time range %d - %d out of bounds %d - %d", ErrTimeRange, start, stop, fstart, fstop)
	}
	if start < fstart {
		logging.Warn().Str("file", f.Path).Uint32("start", start).Uint32("file_start", fstart).
			Msg("start time before actual start of file")
	}
	if stop > fstop {
		logging.Warn().Str("file", f.Path).Uint32("stop", stop).Uint32("file_stop", fstop).
			Msg("stop time after actual end of file")
	}
	return nil
}

// lineRange returns the first line with a timestamp >= start and the last
// line with a timestamp <= stop. The last line is not included.
func (f *File) lineRange(start, stop uint32) (int, int) {
	i0, i1 := -1, -1
	for i, ts := range f.LineTimestamp {
		if i0 < 0 && ts >= start {
			i0 = i
		}
		if ts <= stop {
			i1 = i
		}
	}
	return i0, i1
}

// Data reads all scan lines between start and stop seconds of the day into a
// point cloud. The segment time coverage of the point cloud is the requested
// range on the acquisition day.
func (f *File) Data(start, stop uint32) (*models.PointCloud, error) {
	if err := f.ValidateTimeRange(start, stop); err != nil {
		return nil, err
	}

	i0, i1 := f.lineRange(start, stop)
	nLines := i1 - i0
	if i0 < 0 || nLines <= 0 {
		return nil, fmt.Errorf("%w: no complete scan line between %d and %d", ErrTimeRange, start, stop)
	}
	nShots := int(f.Header.DataPointsPerLine)

	pc := models.NewPointCloud(nLines, nShots)
	day := f.Header.Date()
	pc.SegmentStart = day.Add(time.Duration(start) * time.Second)
	pc.SegmentEnd = day.Add(time.Duration(stop) * time.Second)
	pc.DeviceName = f.Header.DeviceName

	fields := make([][]float64, len(lineFields))
	for k := range fields {
		fields[k] = make([]float64, nLines*nShots)
	}

	bpl := int64(f.Header.BytesPerLine)
	offset := int64(f.Header.Size) + int64(f.Header.BytesSecLine) + int64(i0)*bpl
	buf := make([]byte, bpl)
	for line := 0; line < nLines; line++ {
		if _, err := f.f.ReadAt(buf, offset); err != nil {
			return nil, fmt.Errorf("%s: error reading scan line %d: %w", f.Path, i0+line, err)
		}
		offset += bpl

		p := 0
		for k := range lineFields {
			dst := fields[k][line*nShots : (line+1)*nShots]
			for s := range dst {
				dst[s] = math.Float64frombits(binary.BigEndian.Uint64(buf[p:]))
				p += 8
			}
		}
	}

	for k, name := range lineFields {
		if err := pc.Set(name, fields[k]); err != nil {
			return nil, err
		}
	}

	logging.Debug().
		Str("file", f.Path).
		Int("first_line", i0).
		Int("n_lines", nLines).
		Int("n_shots", nShots).
		Msg("read scan lines")
	return pc, nil
}
