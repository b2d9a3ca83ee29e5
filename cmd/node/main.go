// Command node runs one slt-node process: it loads configuration, binds
// the gossip UDP socket, wires the actor substrate end to end, and runs
// until signalled. Grounded on the teacher's cmd/synnergy/main.go cobra
// root-command layout, generalized from mock subcommands to a real
// bootstrap sequence.
package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sltlabs/slt-node/internal/bank"
	"github.com/sltlabs/slt-node/internal/chain"
	"github.com/sltlabs/slt-node/internal/config"
	"github.com/sltlabs/slt-node/internal/cryptoprim"
	"github.com/sltlabs/slt-node/internal/directory"
	"github.com/sltlabs/slt-node/internal/executor"
	"github.com/sltlabs/slt-node/internal/gossip"
	"github.com/sltlabs/slt-node/internal/mempool"
	"github.com/sltlabs/slt-node/internal/process"
	"github.com/sltlabs/slt-node/internal/rpc"
	"github.com/sltlabs/slt-node/internal/scheduler"
	"github.com/sltlabs/slt-node/internal/shred"
	"github.com/sltlabs/slt-node/internal/wire"
)

var log = logrus.StandardLogger()

// shredChunkLen and maxBlockDataSize bound the shredder's per-datagram
// chunk size and a single block's total reassembled payload, chosen so a
// data shred plus its header comfortably fits under wire.MaxDatagram.
const (
	shredChunkLen    = 1024
	maxBlockDataSize = 64 * 1024 * 1024
)

// nodeVersion is this build's TelemetryNote version triple.
var nodeVersion = wire.Version{Major: 0, Minor: 1, Patch: 0}

func main() {
	rootCmd := &cobra.Command{Use: "slt-node"}
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the node and run until signalled",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(configPath); err != nil {
				log.WithError(err).Error("node exited")
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the node's configuration file")
	return cmd
}

// run is the node's bootstrap sequence: config, identity, bind, wire,
// run forever (spec.md §6's "otherwise the node runs indefinitely").
// Exit code 1 covers config parse failure, bind failure, and state open
// failure, each surfaced as an error here and turned into os.Exit(1) by
// the caller.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config parse failure: %w", err)
	}

	nodeLog := logrus.New()
	process.SetLogger(nodeLog)
	chain.SetLogger(nodeLog)
	gossip.SetLogger(nodeLog)
	log = nodeLog

	seed, err := nodeSeed(cfg.NodeSeedHex)
	if err != nil {
		return fmt.Errorf("config parse failure: %w", err)
	}
	nodeKey := seed.Derive(0)
	nodePub := nodeKey.ToPublic()

	selfEndpoint, err := parseEndpoint(cfg.NodeExternalEndpoint)
	if err != nil {
		return fmt.Errorf("config parse failure: %w", err)
	}

	conn, err := net.ListenPacket("udp4", cfg.NodeBindEndpoint)
	if err != nil {
		return fmt.Errorf("bind failure: %w", err)
	}
	defer conn.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("state open failure: %w", err)
	}
	nextBatchStore, err := directory.OpenObjectStore(cfg.DataDir+"/next_batch", 8)
	if err != nil {
		return fmt.Errorf("state open failure: %w", err)
	}
	defer nextBatchStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := process.NewRegistry()

	b := bank.New(nodePub)
	b.RestoreBatchCounter(binary.LittleEndian.Uint64(nextBatchStore.Get()))
	genesisHash := cryptoprim.DigestHash(nodePub[:])
	dag := chain.NewForkDAG(genesisHash, 0)

	directoryHandle := process.SpawnRestartable(ctx, reg, "directory", b.Directory().Run)

	broadcaster := gossip.NewBroadcaster(conn)
	broadcasterHandle := process.SpawnRestartable(ctx, reg, "broadcaster", broadcaster.Run)

	peers := gossip.NewPeerTable(cfg.MaxLessPeers, cfg.MaxGreaterPeers)
	initialPeers, peerErrs := cfg.ParseInitialPeers()
	for _, e := range peerErrs {
		log.WithError(e).Warn("skipping unparseable initial peer")
	}

	transmitter := gossip.NewTransmitter(gossip.TransmitterConfig{
		SelfPrivate:  nodeKey,
		SelfPublic:   nodePub,
		SelfEndpoint: selfEndpoint,
		Version:      nodeVersion,
		Policy: gossip.Policy{
			SelfPublic:                 nodePub,
			SelfExternalEndpoint:       selfEndpoint,
			AllowPrivateIPAddresses:    cfg.AllowPeersWithPrivateIPAddresses,
			AllowSameExternalIPAddress: cfg.AllowPeersWithNodeExternalIPAddress,
			VersionMajor:               nodeVersion.Major,
		},
		InitialPeers: initialPeers,
		SelfWeight:   func() float64 { return float64(b.GetWeight(nodePub)) },
		CurrentSlot:  func() cryptoprim.Slot { return cryptoprim.SlotAt(time.Now()) },
	}, peers, broadcasterHandle)
	transmitterHandle := process.SpawnRestartable(ctx, reg, "transmitter", transmitter.Run)

	state := chain.NewState(b, dag, nodeKey, transmitterHandle, shredChunkLen)
	stateHandle := process.SpawnRestartable(ctx, reg, "state", state.Run)

	reassembler := shred.NewReassembler(maxBlockDataSize, stateHandle)
	reassemblerHandle := process.SpawnRestartable(ctx, reg, "reassembler", reassembler.Run)

	filler := executor.NewTxFiller(directoryHandle, stateHandle)
	fillerHandle := process.SpawnRestartable(ctx, reg, "tx-filler", filler.Run)

	txPool := mempool.NewTxPool(cfg.TxPoolSize, cryptoprim.BaseDifficulty, fillerHandle)
	txPoolHandle := process.SpawnRestartable(ctx, reg, "tx-pool", txPool.Run)

	openPool := mempool.NewOpenPool(cfg.OpenPoolSize, cryptoprim.BaseDifficulty, stateHandle)
	openPoolHandle := process.SpawnRestartable(ctx, reg, "open-pool", openPool.Run)

	receiver := gossip.NewReceiver(conn, transmitterHandle, reassemblerHandle, txPoolHandle, openPoolHandle)
	process.SpawnRestartable(ctx, reg, "receiver", receiver.Run)

	// The RPC surface itself is out of scope (spec.md §1): rpc.Stub is the
	// narrow Collaborator a real RPC transport would sit behind, forwarding
	// accepted submissions into the same mempool intake the gossip Receiver
	// uses, so the node boots end-to-end without one.
	txSink := make(chan wire.Transaction, 64)
	openSink := make(chan wire.Open, 64)
	_ = rpc.NewStub(b, txSink, openSink)
	var forwarders errgroup.Group
	forwarders.Go(func() error {
		for {
			select {
			case tx := <-txSink:
				txPoolHandle.Send(mempool.InboundTx{Tx: tx})
			case o := <-openSink:
				openPoolHandle.Send(mempool.InboundOpen{Open: o})
			case <-ctx.Done():
				return nil
			}
		}
	})

	sched := scheduler.NewScheduler(4, 4, txPoolHandle, openPoolHandle, stateHandle)
	schedulerHandle := process.SpawnRestartable(ctx, reg, "scheduler", sched.Run)

	clock := scheduler.NewClock(schedulerHandle)
	process.SpawnEndlessInfallible(ctx, reg, "clock", clock.Run)

	log.WithFields(logrus.Fields{
		"node": nodePub.String(),
		"bind": cfg.NodeBindEndpoint,
	}).Info("node started")

	<-ctx.Done()
	log.Info("node shutting down")
	_ = forwarders.Wait()

	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], b.BatchCounter())
	if err := nextBatchStore.Put(counter[:]); err != nil {
		log.WithError(err).Warn("failed to persist batch counter on shutdown")
	}
	return nil
}

func nodeSeed(hexSeed string) (cryptoprim.Seed, error) {
	if hexSeed == "" {
		return cryptoprim.RandomSeed()
	}
	b, err := hex.DecodeString(hexSeed)
	if err != nil {
		return cryptoprim.Seed{}, fmt.Errorf("node_seed is not valid hex: %w", err)
	}
	return cryptoprim.SeedFromBytes(b)
}

// parseEndpoint turns a "host:port" string into a wire.Endpoint, the
// fixed-width IPv4+port pair carried in TelemetryNote.
func parseEndpoint(hostPort string) (wire.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return wire.Endpoint{}, fmt.Errorf("parsing endpoint %q: %w", hostPort, err)
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return wire.Endpoint{}, fmt.Errorf("endpoint %q is not an IPv4 address", hostPort)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return wire.Endpoint{}, fmt.Errorf("parsing port in %q: %w", hostPort, err)
	}
	var ep wire.Endpoint
	copy(ep.Addr[:], ip)
	ep.Port = uint16(port)
	return ep, nil
}
