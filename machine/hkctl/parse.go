package hkctl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/machine"
)

func parseCoords(data string) (p coord.Point, err error) {
	parts := strings.Split(data, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return p, errors.New("invalid number of elements")
	}
	p.X, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return p, err
	}
	p.Y, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

// parseStatus reads a "<Status|MPos:x,y>" report. Fields that are missing
// keep their previous value.
func parseStatus(last machine.State, data string) (machine.State, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "<")
	data = strings.TrimSuffix(data, ">")
	stat := last
	parts := strings.Split(data, "|")
	if parts[0] == "" {
		return last, errors.New("missing status")
	}
	stat.Status = parts[0]
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			continue
		}
		if sParts[0] == "MPos" {
			p, err := parseCoords(sParts[1])
			if err != nil {
				return last, err
			}
			stat.MPos = p
		}
	}
	return stat, nil
}
