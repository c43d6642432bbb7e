package main

import (
	"context"
	"math/big"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promostaking/config"
	"promostaking/core/state"
	"promostaking/core/types"
	"promostaking/crypto"
	"promostaking/native/promo"
	"promostaking/storage"
)

func newAddress(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func TestGenesisFromConfig(t *testing.T) {
	initializer := newAddress(t)
	authority := newAddress(t)
	holder := newAddress(t)

	cfg := config.Default()
	cfg.Tokens = []config.Token{
		{Symbol: "PROMO", Name: "Promo", Decimals: 18, Allocations: []config.Allocation{{Address: holder.String(), Amount: "2500"}}},
		{Symbol: "USDP", Name: "Promo Dollar", Decimals: 6, MintAuthority: authority.String()},
	}
	cfg.Program = &config.Program{Token: "PROMO", StartDelay: 10, Duration: 100, TotalReward: "10000"}

	genesis, err := genesisFromConfig(cfg, initializer.Raw())
	require.NoError(t, err)
	require.Len(t, genesis.Tokens, 2)
	require.Equal(t, initializer.Raw(), genesis.Tokens[0].Metadata.MintAuthority)
	require.Equal(t, authority.Raw(), genesis.Tokens[1].Metadata.MintAuthority)
	require.Len(t, genesis.Tokens[0].Allocations, 1)
	require.Equal(t, holder.Raw(), genesis.Tokens[0].Allocations[0].Address)
	require.Zero(t, genesis.Tokens[0].Allocations[0].Amount.Cmp(big.NewInt(2500)))

	require.NotNil(t, genesis.Program)
	require.Equal(t, uint64(10), genesis.Program.StartDelay)
	require.Equal(t, uint64(100), genesis.Program.Duration)
	require.Zero(t, genesis.Program.TotalReward.Cmp(big.NewInt(10000)))
}

func TestGenesisFromConfigRejectsBadAmount(t *testing.T) {
	cfg := config.Default()
	cfg.Tokens = []config.Token{{Symbol: "PROMO", Name: "Promo", Allocations: []config.Allocation{{Address: newAddress(t).String(), Amount: "-1"}}}}
	_, err := genesisFromConfig(cfg, [20]byte{1})
	require.Error(t, err)
}

func TestBuildTickSourceBlockResumesFromFloor(t *testing.T) {
	var saved atomic.Uint64
	source, run, err := buildTickSource(config.Ticks{Source: "block", BlockInterval: "5ms", StartHeight: 3}, 40, time.Now, func(h uint64) { saved.Store(h) })
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, uint64(40), source.Current())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go run(ctx)
	require.Eventually(t, func() bool { return saved.Load() > 40 }, time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, source.Current(), saved.Load())
}

func TestBuildTickSourceClockNeverRegresses(t *testing.T) {
	now := time.Unix(1_000, 0)
	source, run, err := buildTickSource(config.Ticks{Source: "clock"}, 5_000, func() time.Time { return now }, nil)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, uint64(5_000), source.Current())

	now = time.Unix(6_000, 0)
	require.Equal(t, uint64(6_000), source.Current())
}

func TestBuildTickSourceRejectsUnknown(t *testing.T) {
	_, _, err := buildTickSource(config.Ticks{Source: "lunar"}, 0, time.Now, nil)
	require.Error(t, err)
}

func TestOpenDatabaseBackends(t *testing.T) {
	for _, backend := range []string{"memory", "leveldb", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.DataDir = t.TempDir()
			cfg.Database.Backend = backend
			db, err := openDatabase(cfg)
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), got)
		})
	}

	cfg := config.Default()
	cfg.Database.Backend = "rocks"
	_, err := openDatabase(cfg)
	require.Error(t, err)
}

func putProgram(t *testing.T, manager *state.Manager, start, last uint64) {
	t.Helper()
	tx := manager.Begin()
	require.NoError(t, tx.PromoProgramPut(&promo.Program{
		Token:             "PROMO",
		Initialized:       true,
		StartTick:         start,
		EndTick:           start + 100,
		LastRewardTick:    last,
		TotalReward:       big.NewInt(100),
		RewardPerTick:     big.NewInt(1),
		AccRewardPerShare: big.NewInt(0),
		TotalStaked:       big.NewInt(0),
	}))
	require.NoError(t, tx.Commit())
}

func TestPersistedTickReadsProgram(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	last, err := persistedTick(manager)
	require.NoError(t, err)
	require.Zero(t, last)

	putProgram(t, manager, 10, 77)
	last, err = persistedTick(manager)
	require.NoError(t, err)
	require.Equal(t, uint64(77), last)

	require.NoError(t, state.SaveTickHeight(manager, 90))
	last, err = persistedTick(manager)
	require.NoError(t, err)
	require.Equal(t, uint64(90), last)
}

func TestPersistedTickIgnoresUnstartedProgram(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	putProgram(t, manager, 1000, 1000)
	require.NoError(t, state.SaveTickHeight(manager, 10))

	last, err := persistedTick(manager)
	require.NoError(t, err)
	require.Equal(t, uint64(10), last)
}

func TestBlockHeightSurvivesRestart(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	putProgram(t, manager, 1000, 1000)
	save := func(h uint64) { _ = state.SaveTickHeight(manager, h) }
	ticks := config.Ticks{Source: "block", BlockInterval: "2ms"}

	floor, err := persistedTick(manager)
	require.NoError(t, err)
	source, run, err := buildTickSource(ticks, floor, time.Now, save)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return source.Current() >= 3 }, time.Second, 2*time.Millisecond)
	cancel()
	<-done

	var stored uint64
	require.NoError(t, manager.View(func(tx *state.Tx) error {
		stored, _, err = tx.TickHeight()
		return err
	}))
	require.Equal(t, source.Current(), stored)

	floor, err = persistedTick(manager)
	require.NoError(t, err)
	require.Equal(t, stored, floor)
	restarted, _, err := buildTickSource(ticks, floor, time.Now, save)
	require.NoError(t, err)
	require.Equal(t, stored, restarted.Current())
	require.Less(t, restarted.Current(), uint64(1000))
}

func TestRunRejectsMissingYAML(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)
}

func TestOpenArchiveAndExport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Archive.Driver = "sqlite"

	arch, err := openArchive(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, arch.Append(context.Background(), &types.Event{Type: "promo.refreshed", Attributes: map[string]string{"lastRewardTick": "4"}}))
	n, err := arch.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, arch.Close())
	require.FileExists(t, filepath.Join(cfg.DataDir, "events.db"))
}
