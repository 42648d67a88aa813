// Package bench measures client write latency with rados bench.
package bench

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/ceph"
	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
)

// RadosBench measures small-write latency with `rados bench`
type RadosBench struct {
	runner ceph.Runner

	// Binary is the rados executable (default: "rados")
	Binary string

	// Seconds is the benchmark duration (default: 10)
	Seconds int

	// BlockSize is the object size in bytes (default: 4096)
	BlockSize int

	// Threads is the number of concurrent writes (default: 1)
	Threads int

	// Cluster, ID and ConfPath are passed through like the ceph CLI does
	Cluster  string
	ID       string
	ConfPath string
}

// NewRadosBench creates a prober with the defaults used for drain rounds
func NewRadosBench(runner ceph.Runner) *RadosBench {
	return &RadosBench{
		runner:    runner,
		Binary:    "rados",
		Seconds:   10,
		BlockSize: 4096,
		Threads:   1,
	}
}

func (b *RadosBench) args(pool string) []string {
	var args []string
	if b.Cluster != "" {
		args = append(args, "--cluster", b.Cluster)
	}
	if b.ID != "" {
		args = append(args, "--id", b.ID)
	}
	if b.ConfPath != "" {
		args = append(args, "--conf", b.ConfPath)
	}
	return append(args,
		"-p", pool,
		"bench", strconv.Itoa(b.Seconds), "write",
		"-t", strconv.Itoa(b.Threads),
		"-b", strconv.Itoa(b.BlockSize),
	)
}

// MeasureWriteLatency runs the benchmark against pool and returns the
// average write latency in milliseconds
func (b *RadosBench) MeasureWriteLatency(ctx context.Context, pool string) (float64, error) {
	logger := log.WithComponent("bench")
	start := time.Now()

	out, err := b.runner.Run(ctx, b.Binary, b.args(pool)...)
	if err != nil {
		return 0, errors.Wrapf(err, "rados bench on pool %s failed", pool)
	}

	seconds, err := ParseAverageLatency(out)
	if err != nil {
		return 0, errors.Mark(err, types.ErrTransient)
	}
	ms := seconds * 1000

	logger.Debug().
		Str("pool", pool).
		Float64("latency_ms", ms).
		Dur("took", time.Since(start)).
		Msg("write latency measured")
	return ms, nil
}

// ParseAverageLatency extracts the "Average Latency(s):" value, in seconds,
// from rados bench output
func ParseAverageLatency(out []byte) (float64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "average latency") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		value := strings.TrimSpace(line[idx+1:])
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "malformed latency line %q", line)
		}
		if v < 0 {
			return 0, errors.Newf("negative latency in %q", line)
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "failed to read rados bench output")
	}
	return 0, errors.New("no average latency in rados bench output")
}
