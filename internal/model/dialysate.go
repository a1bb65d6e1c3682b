package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialysate is a dextrose concentration of a PD solution bag.
type Dialysate int

const (
	DialysateUnknown Dialysate = iota
	Dialysate150
	Dialysate250
	Dialysate425
)

type dialysateInfo struct {
	percent float64
	key     string
}

// dialysates is the closed set of supported concentrations.
var dialysates = map[Dialysate]dialysateInfo{
	Dialysate150: {percent: 1.5, key: "1.5"},
	Dialysate250: {percent: 2.5, key: "2.5"},
	Dialysate425: {percent: 4.25, key: "4.25"},
}

// Dialysates lists the supported concentrations in ascending order.
func Dialysates() []Dialysate {
	return []Dialysate{Dialysate150, Dialysate250, Dialysate425}
}

// DialysateFromPercent maps a numeric concentration onto the closed set.
func DialysateFromPercent(p float64) (Dialysate, bool) {
	for d, info := range dialysates {
		if info.percent == p {
			return d, true
		}
	}
	return DialysateUnknown, false
}

// ParseDialysate accepts "2.5", " 2.50 ", "2.5%" and similar spellings.
func ParseDialysate(s string) (Dialysate, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return DialysateUnknown, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DialysateUnknown, false
	}
	return DialysateFromPercent(p)
}

func (d Dialysate) Percent() float64 {
	return dialysates[d].percent
}

func (d Dialysate) Valid() bool {
	_, ok := dialysates[d]
	return ok
}

// String returns the canonical key ("1.5", "2.5", "4.25") stored in the database.
func (d Dialysate) String() string {
	if info, ok := dialysates[d]; ok {
		return info.key
	}
	return "unknown"
}

func (d Dialysate) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dialysate %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Dialysate) UnmarshalText(text []byte) error {
	parsed, ok := ParseDialysate(string(text))
	if !ok {
		return fmt.Errorf("invalid dialysate %q", string(text))
	}
	*d = parsed
	return nil
}
