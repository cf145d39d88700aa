// Package localfiles implements a built-in datasource.DataSource that
// serves data out of a folder hierarchy of fixed-length binary files, one
// per 10-minute window, named by their start time
// (<root>/<YYYY-MM>/<YYYY-MM-DD>/<YYYY-MM-DD_HH-MM-SS>.dat). It is the
// simplest possible real extension, useful as a smoke test and as the
// reference implementation other providers are modeled on.
package localfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

const (
	fileNameLayout  = "2006-01-02_15-04-05.dat"
	secondsPerFile  = 600
	catalogID       = "/A/B/C"
)

// DataSource reads 1 Hz INT64 samples out of the file layout described in
// the package doc. It is registered in the extension registry under the
// "local-files" provider type.
type DataSource struct {
	root   string
	logger datasource.ILogger
}

// New constructs an unconfigured DataSource; SetContext fills in root from
// the session's resource locator.
func New() (datasource.DataSource, error) {
	return &DataSource{}, nil
}

func (d *DataSource) SetContext(ctx context.Context, dsContext datasource.Context, logger datasource.ILogger) error {
	if dsContext.ResourceLocator == nil || dsContext.ResourceLocator.Path == "" {
		return fmt.Errorf("no resource locator provided")
	}
	if dsContext.ResourceLocator.Scheme != "file" {
		return fmt.Errorf("expected 'file' URI scheme, but got %q", dsContext.ResourceLocator.Scheme)
	}
	d.root = dsContext.ResourceLocator.Path
	d.logger = logger
	logger.Log(datasource.LogLevelInformation, "local-files data source configured")
	return nil
}

func (d *DataSource) GetCatalogRegistrations(ctx context.Context, path string) ([]datasource.CatalogRegistration, error) {
	if path != "/" {
		return nil, nil
	}
	return []datasource.CatalogRegistration{
		{Path: "/A/B/C", Description: "Test catalog /A/B/C."},
		{Path: "/D/E/F", Description: "Test catalog /D/E/F."},
	}, nil
}

func (d *DataSource) GetCatalog(ctx context.Context, id string) (datasource.Catalog, error) {
	switch id {
	case "/A/B/C":
		return datasource.Catalog{
			ID:         id,
			Properties: map[string]interface{}{"a": "b", "c": 1},
			Resources: []datasource.Resource{
				{
					Name:   "resource1",
					Unit:   "°C",
					Groups: []string{"group1"},
					Representations: []datasource.Representation{
						{DataType: datasource.DataTypeInt64, SamplePeriod: wire.NewDuration(time.Second)},
					},
				},
				{
					Name:   "resource2",
					Unit:   "bar",
					Groups: []string{"group2"},
					Representations: []datasource.Representation{
						{DataType: datasource.DataTypeFloat64, SamplePeriod: wire.NewDuration(time.Second)},
					},
				},
			},
		}, nil
	case "/D/E/F":
		return datasource.Catalog{
			ID: id,
			Resources: []datasource.Resource{
				{
					Name:   "resource1",
					Unit:   "m/s",
					Groups: []string{"group1"},
					Representations: []datasource.Representation{
						{DataType: datasource.DataTypeFloat64, SamplePeriod: wire.NewDuration(time.Second)},
					},
				},
			},
		}, nil
	default:
		return datasource.Catalog{}, fmt.Errorf("unknown catalog identifier")
	}
}

func (d *DataSource) GetTimeRange(ctx context.Context, id string) (datasource.Timestamp, datasource.Timestamp, error) {
	if id != catalogID {
		return datasource.Timestamp{}, datasource.Timestamp{}, fmt.Errorf("unknown catalog identifier")
	}
	times, err := d.fileTimes()
	if err != nil {
		return datasource.Timestamp{}, datasource.Timestamp{}, err
	}
	if len(times) == 0 {
		return datasource.Timestamp{}, datasource.Timestamp{}, fmt.Errorf("no data files found under %s", d.root)
	}
	return wire.NewTimestamp(times[0]), wire.NewTimestamp(times[len(times)-1]), nil
}

func (d *DataSource) GetAvailability(ctx context.Context, id string, begin, end datasource.Timestamp) (float64, error) {
	if id != catalogID {
		return 0, fmt.Errorf("unknown catalog identifier")
	}
	times, err := d.fileTimes()
	if err != nil {
		return 0, err
	}
	maxFileCount := end.Sub(begin.Time).Seconds() / (secondsPerFile)
	if maxFileCount <= 0 {
		return 0, nil
	}
	actual := 0
	for _, t := range times {
		if !t.Before(begin.Time) && t.Before(end.Time) {
			actual++
		}
	}
	return float64(actual) / maxFileCount, nil
}

// Read implements the "read local files" branch of the upstream fixture:
// it walks one day at a time, finds every matching file in that day's
// folder, and copies matching 10-minute windows directly into the
// request's Data/Status buffers.
func (d *DataSource) Read(ctx context.Context, begin, end datasource.Timestamp, requests []datasource.ReadRequest, readData datasource.ReadHandler, reportProgress datasource.ProgressHandler) error {
	for _, req := range requests {
		samplePeriod := req.CatalogItem.Representation.SamplePeriod.Duration
		if samplePeriod <= 0 {
			return fmt.Errorf("invalid sample period")
		}
		samplesPerSecond := int(time.Second / samplePeriod)
		elementSize := req.CatalogItem.Representation.ElementSize()
		fileLength := samplesPerSecond * secondsPerFile

		y, mo, dd := begin.Time.UTC().Date()
		current := time.Date(y, mo, dd, 0, 0, 0, 0, time.UTC)
		for current.Before(end.Time) {
			dayDir := filepath.Join(d.root, current.Format("2006-01"), current.Format("2006-01-02"))
			entries, err := os.ReadDir(dayDir)
			if err != nil {
				if !os.IsNotExist(err) {
					return err
				}
				current = current.AddDate(0, 0, 1)
				continue
			}

			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dat") {
					continue
				}
				fileBegin, err := time.ParseInLocation(fileNameLayout, entry.Name(), time.UTC)
				if err != nil {
					continue
				}
				if fileBegin.Before(begin.Time) || !fileBegin.Before(end.Time) {
					continue
				}

				fileData, err := os.ReadFile(filepath.Join(dayDir, entry.Name()))
				if err != nil {
					return err
				}

				targetOffset := int(fileBegin.Sub(begin.Time).Seconds()) * samplesPerSecond
				copyLen := fileLength * elementSize
				if targetOffset*elementSize+copyLen > len(req.Data) {
					copyLen = len(req.Data) - targetOffset*elementSize
				}
				if copyLen > 0 {
					copy(req.Data[targetOffset*elementSize:], fileData[:copyLen])
				}
				for i := 0; i < fileLength && targetOffset+i < len(req.Status); i++ {
					req.Status[targetOffset+i] = 1
				}
			}

			current = current.AddDate(0, 0, 1)
		}
	}
	return nil
}

func (d *DataSource) fileTimes() ([]time.Time, error) {
	var times []time.Time
	err := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".dat") {
			return nil
		}
		t, perr := time.ParseInLocation(fileNameLayout, filepath.Base(path), time.UTC)
		if perr != nil {
			return nil
		}
		times = append(times, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}
