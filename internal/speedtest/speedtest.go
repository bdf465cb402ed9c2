// Package speedtest reads the ranked result file written by
// CloudflareSpeedTest (https://github.com/XIU2/CloudflareSpeedTest).
package speedtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// ErrResultSourceEmpty is returned when the result file holds no usable IP.
var ErrResultSourceEmpty = errors.New("speed test result is empty")

// Result is one row of the result file. Rows are ranked best first.
type Result struct {
	IP            netip.Addr
	Sent          int
	Received      int
	LossRate      float64
	AvgLatencyMS  float64
	DownloadSpeed float64 // MB/s
}

// Column headers, Chinese first as written by the default build.
var (
	ipHeaders       = []string{"IP 地址", "IP Address"}
	sentHeaders     = []string{"已发送", "Sent"}
	receivedHeaders = []string{"已接收", "Received"}
	lossHeaders     = []string{"丢包率", "Loss Rate"}
	latencyHeaders  = []string{"平均延迟", "Average Delay"}
	speedHeaders    = []string{"下载速度 (MB/s)", "Download Speed (MB/s)"}
)

// ReadFile reads the results at path. A missing file yields an error
// wrapping fs.ErrNotExist.
func ReadFile(log logr.Logger, path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening speed test result file: %w", err)
	}
	defer f.Close()

	results, err := Read(log, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return results, nil
}

// Read parses a result CSV. Rows whose IP does not parse are skipped.
func Read(log logr.Logger, r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := columns{
		ip:       indexOf(header, ipHeaders),
		sent:     indexOf(header, sentHeaders),
		received: indexOf(header, receivedHeaders),
		loss:     indexOf(header, lossHeaders),
		latency:  indexOf(header, latencyHeaders),
		speed:    indexOf(header, speedHeaders),
	}
	if cols.ip < 0 {
		cols.ip = 0
	}

	var results []Result
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing row %d: %w", line, err)
		}

		raw := field(row, cols.ip)
		ip, err := netip.ParseAddr(raw)
		if err != nil {
			log.Info("skipping row with invalid IP", "line", line, "ip", raw)
			continue
		}
		results = append(results, Result{
			IP:            ip.Unmap(),
			Sent:          int(number(field(row, cols.sent))),
			Received:      int(number(field(row, cols.received))),
			LossRate:      number(field(row, cols.loss)),
			AvgLatencyMS:  number(field(row, cols.latency)),
			DownloadSpeed: number(field(row, cols.speed)),
		})
	}
	return results, nil
}

// Best returns the first, best ranked, result.
func Best(results []Result) (Result, error) {
	if len(results) == 0 {
		return Result{}, ErrResultSourceEmpty
	}
	return results[0], nil
}

type columns struct {
	ip, sent, received, loss, latency, speed int
}

func indexOf(header, names []string) int {
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// number parses a numeric cell, tolerating a trailing % or "ms". Unparsable
// cells read as zero.
func number(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSuffix(s, "%"), "ms")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
