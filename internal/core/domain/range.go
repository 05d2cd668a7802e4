package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RangeSpec is a parsed single Range header, not yet resolved against an object size.
// Suffix > 0 means the last Suffix bytes; End < 0 means open ended.
type RangeSpec struct {
	Start  int64
	End    int64
	Suffix int64
}

// ByteRange is an inclusive, resolved byte range
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the range
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value
func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange parses a Range header. Headers for other units are ignored (nil, nil).
func ParseRange(header string) (*RangeSpec, error) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil, nil
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, "bytes="))
	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("%w: multiple ranges are not supported", ErrRangeNotSatisfiable)
	}

	i := strings.IndexByte(spec, '-')
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrRangeNotSatisfiable, header)
	}
	a, z := strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i+1:])

	switch {
	case a == "" && z != "":
		n, err := strconv.ParseInt(z, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrRangeNotSatisfiable, header)
		}
		return &RangeSpec{Start: -1, End: -1, Suffix: n}, nil
	case a != "":
		start, err := strconv.ParseInt(a, 10, 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("%w: %q", ErrRangeNotSatisfiable, header)
		}
		if z == "" {
			return &RangeSpec{Start: start, End: -1}, nil
		}
		end, err := strconv.ParseInt(z, 10, 64)
		if err != nil || end < start {
			return nil, fmt.Errorf("%w: %q", ErrRangeNotSatisfiable, header)
		}
		return &RangeSpec{Start: start, End: end}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrRangeNotSatisfiable, header)
	}
}

// Resolve maps the requested range onto an object of the given size
func (s RangeSpec) Resolve(size int64) (ByteRange, error) {
	if size <= 0 {
		return ByteRange{}, fmt.Errorf("%w: empty object", ErrRangeNotSatisfiable)
	}

	if s.Suffix > 0 {
		start := size - s.Suffix
		if start < 0 {
			start = 0
		}
		return ByteRange{Start: start, End: size - 1}, nil
	}

	if s.Start >= size {
		return ByteRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrRangeNotSatisfiable, s.Start, size)
	}
	end := s.End
	if end < 0 || end >= size {
		end = size - 1
	}
	return ByteRange{Start: s.Start, End: end}, nil
}
