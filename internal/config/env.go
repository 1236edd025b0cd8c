package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &VarError{Name: k, Value: v, Err: err}
	}
	return i, nil
}

func getenvFloatDefault(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &VarError{Name: k, Value: v, Err: err}
	}
	return f, nil
}

func getenvBoolDefault(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &VarError{Name: k, Value: v, Err: err}
	}
	return b, nil
}

func getenvDurationDefault(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &VarError{Name: k, Value: v, Err: err}
	}
	return d, nil
}

// envReader acumula o primeiro erro para Load não virar uma escada de ifs.
type envReader struct {
	err error
}

func (e *envReader) int(k string, def int) int {
	v, err := getenvIntDefault(k, def)
	e.keep(err)
	return v
}

func (e *envReader) float(k string, def float64) float64 {
	v, err := getenvFloatDefault(k, def)
	e.keep(err)
	return v
}

func (e *envReader) bool(k string, def bool) bool {
	v, err := getenvBoolDefault(k, def)
	e.keep(err)
	return v
}

func (e *envReader) duration(k string, def time.Duration) time.Duration {
	v, err := getenvDurationDefault(k, def)
	e.keep(err)
	return v
}

func (e *envReader) keep(err error) {
	if e.err == nil {
		e.err = err
	}
}
