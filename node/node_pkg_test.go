package node

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
	"github.com/NethermindEth/devnet/db/pebble"
	"github.com/NethermindEth/devnet/genesis"
	"github.com/NethermindEth/devnet/sequencer"
	"github.com/NethermindEth/devnet/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) []float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		values := make([]float64, 0, len(family.GetMetric()))
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values = append(values, metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				values = append(values, metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				values = append(values, float64(metric.GetHistogram().GetSampleCount()))
			}
		}
		return values
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestPrintAccounts(t *testing.T) {
	var buf bytes.Buffer
	printAccounts(&buf, []genesis.DeployedAccount{
		{
			Address:    felt.UnsafeFromString("0xabc"),
			PublicKey:  felt.UnsafeFromString("0x123"),
			PrivateKey: felt.UnsafeFromString("0x456"),
			Balance:    1000,
		},
		{
			Address:   felt.UnsafeFromString("0xdef"),
			PublicKey: felt.UnsafeFromString("0x789"),
		},
	})

	out := buf.String()
	for _, want := range []string{"ADDRESS", "0xabc", "0x123", "0x456", "1000", "0xdef", "0x789", "-"} {
		assert.Contains(t, out, want)
	}
}

func TestSequencerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	listener := makeSequencerMetrics(reg)

	listener.OnDrip()
	listener.OnDrip()
	listener.OnExecution(time.Millisecond, nil)
	listener.OnExecution(time.Millisecond, errors.New("failed"))
	listener.OnBlockClosed(4, 7)

	assert.Equal(t, []float64{2}, gather(t, reg, "sequencer_drips"))
	assert.ElementsMatch(t, []float64{1, 1}, gather(t, reg, "sequencer_executions"))
	assert.Equal(t, []float64{2}, gather(t, reg, "sequencer_execution_latency"))
	assert.Equal(t, []float64{4}, gather(t, reg, "sequencer_closed_block_number"))
	assert.Equal(t, []float64{1}, gather(t, reg, "sequencer_block_state_changes"))
}

func TestDBMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := pebble.NewMemTest(t).WithListener(makeDBMetrics(reg))
	makePebbleMetrics(reg, store.Impl())

	require.NoError(t, store.Put([]byte("key"), []byte("value")))
	_, err := store.Has([]byte("key"))
	require.NoError(t, err)
	batch := store.NewBatch()
	require.NoError(t, batch.Put([]byte("other"), []byte("value")))
	require.NoError(t, batch.Write())

	assert.Equal(t, []float64{1}, gather(t, reg, "db_write_latency"))
	assert.Equal(t, []float64{1}, gather(t, reg, "db_read_latency"))
	assert.Equal(t, []float64{1}, gather(t, reg, "db_commit_latency"))
	assert.Len(t, gather(t, reg, "pebble_block_cache_size"), 1)
}

func TestMetricsService(t *testing.T) {
	n, err := New(&Config{
		LogLevel:     utils.ERROR,
		Metrics:      true,
		MetricsHost:  "127.0.0.1",
		DatabasePath: t.TempDir(),
		SeedAccounts: 1,
		SeedBalance:  1_000_000_000_000_000_000,
	}, "v0.1.0")
	require.NoError(t, err)
	require.Len(t, n.services, 1)
	metricsService, ok := n.services[0].(*httpService)
	require.True(t, ok)
	addr := metricsService.listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	var wg conc.WaitGroup
	wg.Go(func() {
		n.Run(ctx)
	})
	defer func() {
		cancel()
		wg.Wait()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/metrics", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	for _, want := range []string{
		`devnet_info{version="v0.1.0"} 0`,
		"sequencer_drips 1",
		`sequencer_executions{status="ok"} 1`,
		"sequencer_closed_block_number 0",
		"db_commit_latency",
		"pedersen_cache",
	} {
		assert.Contains(t, string(body), want)
	}
}

type failingCommitter struct {
	*state.DictReader
}

func (failingCommitter) Commit(*core.StateDiff, uint64) error {
	return errors.New("disk full")
}

func TestBlockProducer(t *testing.T) {
	t.Run("closes blocks", func(t *testing.T) {
		seq := sequencer.New()
		producer := newBlockProducer(seq, 5*time.Millisecond, utils.NewNopZapLogger())

		ctx, cancel := context.WithCancel(context.Background())
		var wg conc.WaitGroup
		var runErr error
		wg.Go(func() {
			runErr = producer.Run(ctx)
		})

		require.Eventually(t, func() bool {
			return seq.BlockContext().BlockNumber >= 3
		}, time.Second, time.Millisecond)
		cancel()
		wg.Wait()
		require.NoError(t, runErr)
		assert.NotZero(t, seq.BlockContext().BlockTimestamp)
	})

	t.Run("stops on commit failure", func(t *testing.T) {
		seq, err := sequencer.NewWithOptions(sequencer.WithBackingState(failingCommitter{state.NewDictReader()}))
		require.NoError(t, err)
		producer := newBlockProducer(seq, time.Millisecond, utils.NewNopZapLogger())
		require.ErrorContains(t, producer.Run(context.Background()), "disk full")
	})
}
