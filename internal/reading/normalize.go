package reading

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
)

// Raw apcupsd status field names.
const (
	fieldStatus      = "STATUS"
	fieldLineVolts   = "LINEV"
	fieldLoadPct     = "LOADPCT"
	fieldBattCharge  = "BCHARGE"
	fieldOutputVolts = "OUTPUTV"
	fieldTimeLeft    = "TIMELEFT"
	fieldInternalTmp = "ITEMP"
)

// onBatteryToken is the status flag apcupsd reports while on battery
// power ("ONBATT", possibly alongside other tokens like "LOWBATT").
const onBatteryToken = "ONBATT"

// Normalize converts a raw status map into a Reading. STATUS, LINEV,
// LOADPCT and BCHARGE are required; OUTPUTV, TIMELEFT and ITEMP default
// to nil so partial data still yields a usable reading. Values keep the
// unit suffixes apcupsd prints ("120.0 Volts"); those are stripped
// before parsing.
func Normalize(raw map[string]string, hw Hardware, now time.Time) (Reading, error) {
	errFactory := errors.New()

	status, ok := raw[fieldStatus]
	if !ok || strings.TrimSpace(status) == "" {
		return Reading{}, errFactory.WithData(ErrMissingField, fieldStatus)
	}
	status = strings.TrimSpace(status)

	lineVolts, err := requiredFloat(raw, fieldLineVolts)
	if err != nil {
		return Reading{}, err
	}
	loadPct, err := requiredFloat(raw, fieldLoadPct)
	if err != nil {
		return Reading{}, err
	}
	battCharge, err := requiredFloat(raw, fieldBattCharge)
	if err != nil {
		return Reading{}, err
	}

	watts := round1(float64(hw.RatedWatts) * loadPct / 100)
	amps := 0.0
	if hw.NominalVoltage > 0 {
		amps = round2(watts / float64(hw.NominalVoltage))
	}

	return Reading{
		Timestamp:        now,
		LineVolts:        lineVolts,
		OutputVolts:      optionalFloat(raw, fieldOutputVolts),
		LoadPct:          loadPct,
		BatteryChargePct: battCharge,
		RuntimeLeftMin:   optionalFloat(raw, fieldTimeLeft),
		InternalTempC:    optionalFloat(raw, fieldInternalTmp),
		Watts:            watts,
		Amps:             amps,
		Status:           status,
		OnBattery:        hasToken(status, onBatteryToken),
	}, nil
}

func requiredFloat(raw map[string]string, field string) (float64, error) {
	errFactory := errors.New()

	value, ok := raw[field]
	if !ok {
		return 0, errFactory.WithData(ErrMissingField, field)
	}

	f, err := parseValue(value)
	if err != nil {
		return 0, errFactory.WithData(ErrInvalidField, field+"="+value)
	}

	return f, nil
}

func optionalFloat(raw map[string]string, field string) *float64 {
	value, ok := raw[field]
	if !ok {
		return nil
	}

	f, err := parseValue(value)
	if err != nil {
		return nil
	}

	return &f
}

// parseValue parses a raw field value, ignoring unit suffixes such as
// "Volts", "Percent", "Minutes" or "C".
func parseValue(value string) (float64, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, strconv.ErrSyntax
	}

	token := fields[0]
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}

	// Some firmwares glue the unit onto the number ("120.0V").
	token = strings.TrimRightFunc(token, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})

	return strconv.ParseFloat(token, 64)
}

func hasToken(status, token string) bool {
	for _, t := range strings.Fields(status) {
		if t == token {
			return true
		}
	}

	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
