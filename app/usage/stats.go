package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

const (
	totalStatsFile = "total_stats.json"
	perAppDir      = "per-application"
	instancesFile  = "instances.json"
)

// ParseError is returned when a local report file is not valid JSON
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stats summarizes component usage counts
type Stats struct {
	TotalInstances   int            `json:"totalInstances"`
	UniqueComponents int            `json:"uniqueComponents"`
	ComponentUsage   map[string]int `json:"componentUsage"`
}

// LocalUsage holds the instances of a component in one micro-frontend
type LocalUsage struct {
	Application string     `json:"application"`
	MFE         string     `json:"mfe"`
	Instances   []Instance `json:"instances"`
}

// ReadStats loads a JSON object of component name to instance count.
// A missing file means no data yet and returns zero stats. Values that are not
// numbers contribute zero.
func ReadStats(path string) (Stats, error) {
	res := Stats{ComponentUsage: map[string]int{}}

	// #nosec G304 - path comes from server configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return res, &ParseError{Path: path, Err: err}
	}

	for name, v := range raw {
		count := toCount(v)
		res.ComponentUsage[name] = count
		res.TotalInstances += count
	}
	res.UniqueComponents = len(raw)
	return res, nil
}

// decimalNumber matches plain decimal notation, leaving out hex, octal and binary
// prefixes as well as inf and nan spellings
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// toCount coerces a stats value to an instance count. Strings must hold a
// decimal number, fractions round to the nearest whole count and anything
// else counts as zero.
func toCount(v any) int {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if !decimalNumber.MatchString(s) {
			return 0
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

// Reader reads the local usage report directory
type Reader struct {
	reportRoot string
}

// NewReader creates a reader for the report rooted at reportRoot
func NewReader(reportRoot string) *Reader {
	return &Reader{reportRoot: reportRoot}
}

// ReportRoot returns the report directory
func (r *Reader) ReportRoot() string {
	return r.reportRoot
}

// Stats reads the aggregate stats file of the report
func (r *Reader) Stats() (Stats, error) {
	return ReadStats(filepath.Join(r.reportRoot, totalStatsFile))
}

// LocalInstances collects the recorded instances of a component from every
// application and micro-frontend of the report. Missing files are skipped.
func (r *Reader) LocalInstances(component string) ([]LocalUsage, error) {
	if err := checkComponent(component); err != nil {
		return nil, err
	}

	pattern := filepath.Join(r.reportRoot, perAppDir, "*", "*", component, instancesFile)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid component name %q: %w", component, err)
	}
	sort.Strings(matches)

	res := []LocalUsage{}
	for _, path := range matches {
		// #nosec G304 - path is matched under the configured report root
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		instances, err := DecodeAll(data)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}

		mfeDir := filepath.Dir(filepath.Dir(path))
		res = append(res, LocalUsage{
			Application: filepath.Base(filepath.Dir(mfeDir)),
			MFE:         filepath.Base(mfeDir),
			Instances:   instances,
		})
	}
	return res, nil
}

// Close is a no-op for Reader but lets it stand in for CachedReader
func (r *Reader) Close() error {
	return nil
}

// checkComponent rejects names that would escape a single path segment or
// act as a glob pattern when matched against the report tree
func checkComponent(component string) error {
	if component == "" {
		return fmt.Errorf("component is required")
	}
	if strings.ContainsAny(component, `/\*?[`) || component == "." || component == ".." {
		return fmt.Errorf("invalid component name %q", component)
	}
	return nil
}
