package bench

import (
	"context"
	"testing"

	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchOutput = `hints = 1
Maintaining 1 concurrent writes of 4096 bytes to objects of size 4096 for up to 10 seconds or 0 objects
Object prefix: benchmark_data_store-01_23145
  sec Cur ops   started  finished  avg MB/s  cur MB/s last lat(s)  avg lat(s)
    0       0         0         0         0         0           -           0
    1       1       412       411   1.60512   1.60547  0.00220831  0.00242766
Total time run:         10.0019
Total writes made:      4127
Write size:             4096
Object size:            4096
Bandwidth (MB/sec):     1.61178
Stddev Bandwidth:       0.0371211
Max bandwidth (MB/sec): 1.66797
Min bandwidth (MB/sec): 1.54297
Average IOPS:           412
Stddev IOPS:            9.50292
Max IOPS:               427
Min IOPS:               395
Average Latency(s):     0.00242237
Stddev Latency(s):      0.000502474
Max latency(s):         0.0166383
Min latency(s):         0.00155286
Cleaning up (deleting benchmark objects)
Removed 4127 objects
Clean up completed and total clean up time :1.93712
`

type fakeRunner struct {
	out  string
	err  error
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return []byte(f.out), f.err
}

func TestParseAverageLatency(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{name: "full output", out: benchOutput, want: 0.00242237},
		{name: "single line", out: "Average Latency(s):   0.05\n", want: 0.05},
		{name: "lower case", out: "average latency(s): 1.5", want: 1.5},
		{name: "missing", out: "Total time run: 10\n", wantErr: true},
		{name: "empty", out: "", wantErr: true},
		{name: "malformed", out: "Average Latency(s): n/a\n", wantErr: true},
		{name: "negative", out: "Average Latency(s): -1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAverageLatency([]byte(tt.out))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMeasureWriteLatency(t *testing.T) {
	runner := &fakeRunner{out: benchOutput}
	b := NewRadosBench(runner)

	ms, err := b.MeasureWriteLatency(context.Background(), "test")
	require.NoError(t, err)
	assert.InDelta(t, 2.42237, ms, 1e-9)

	assert.Equal(t, "rados", runner.name)
	assert.Equal(t, []string{"-p", "test", "bench", "10", "write", "-t", "1", "-b", "4096"}, runner.args)
}

func TestMeasureWriteLatencyClusterOptions(t *testing.T) {
	runner := &fakeRunner{out: "Average Latency(s): 0.1\n"}
	b := NewRadosBench(runner)
	b.Binary = "/opt/ceph/bin/rados"
	b.Seconds = 5
	b.Cluster = "backup"
	b.ID = "drainer"
	b.ConfPath = "/etc/ceph/backup.conf"

	ms, err := b.MeasureWriteLatency(context.Background(), "scratch")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ms, 1e-9)

	assert.Equal(t, "/opt/ceph/bin/rados", runner.name)
	assert.Equal(t, []string{
		"--cluster", "backup", "--id", "drainer", "--conf", "/etc/ceph/backup.conf",
		"-p", "scratch", "bench", "5", "write", "-t", "1", "-b", "4096",
	}, runner.args)
}

func TestMeasureWriteLatencyErrors(t *testing.T) {
	t.Run("command failure", func(t *testing.T) {
		cmdErr := errors.Mark(errors.New("rados: exit status 1"), types.ErrTransient)
		b := NewRadosBench(&fakeRunner{err: cmdErr})

		_, err := b.MeasureWriteLatency(context.Background(), "test")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransient))
	})

	t.Run("unparseable output", func(t *testing.T) {
		b := NewRadosBench(&fakeRunner{out: "error opening pool test\n"})

		_, err := b.MeasureWriteLatency(context.Background(), "test")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransient))
	})
}
