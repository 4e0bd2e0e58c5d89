package luna

import (
	"errors"
	"fmt"
	"strings"
)

// Schemes accepted in front of a service address.
var schemes = []string{"palm://", "luna://"}

// ErrInvalidAddress is returned for URLs with no service segment.
var ErrInvalidAddress = errors.New("invalid service url")

// Address is the parsed form of a bus pseudo-URL.
type Address struct {
	Service string
	Method  string
}

func (a Address) String() string {
	return "palm://" + a.Service + "/" + a.Method
}

// ParseAddress splits palm://service/method/path into its service name and
// method path. The scheme is optional.
func ParseAddress(url string) (Address, error) {
	rest := strings.TrimSpace(url)
	for _, s := range schemes {
		if strings.HasPrefix(rest, s) {
			rest = rest[len(s):]
			break
		}
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, url)
	}

	return Address{
		Service: segments[0],
		Method:  strings.Join(segments[1:], "/"),
	}, nil
}
