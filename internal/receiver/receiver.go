package receiver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/EOSTribe/eos-chronicle/abicache"
	"github.com/EOSTribe/eos-chronicle/bus"
	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/enforce"
	"github.com/EOSTribe/eos-chronicle/logger"
	"github.com/EOSTribe/eos-chronicle/statedb"
)

type Config struct {
	Host             string
	Port             string
	StateDir         string
	StateDBSizeMB    int
	ReportEvery      uint32
	MaxQueueSize     uint32
	BlacklistActions []string
}

// streamConn is the slice of the websocket API the receiver uses; tests
// substitute an in-memory stream.
type streamConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dependency delays the receiver's start until another plugin reports
// started.
type Dependency interface {
	Name() string
	Started() bool
}

type Receiver struct {
	cfg      Config
	db       *statedb.DB
	cache    *abicache.Cache
	protocol *abicache.Types
	reactor  *bus.Reactor
	channels *Channels

	conn   streamConn
	cancel context.CancelFunc

	head           uint32
	headID         chain.Checksum256
	irreversible   uint32
	irreversibleID chain.Checksum256
	blockTimestamp chain.BlockTimestamp

	recoveredDepth int
	aborting       bool

	exporterWillAck        bool
	exporterAckedBlock     uint32
	exporterMaxUnconfirmed uint32
	slowdownRequested      bool
	pauseTimeMsec          uint32

	blacklist map[uint64]map[uint64]struct{}

	dependencies []Dependency
}

// instance is the process-wide receiver other plugins reach; set once
// at startup.
var instance *Receiver

func Instance() *Receiver {
	return instance
}

var haveExporter bool

// ExporterInitialized registers the single exporter slot; a second
// exporter is a configuration error.
func ExporterInitialized() error {
	if haveExporter {
		return errors.New("only one exporter plugin is allowed")
	}
	haveExporter = true
	return nil
}

func New(cfg Config, reactor *bus.Reactor) (*Receiver, error) {
	db, depth, err := statedb.Open(cfg.StateDir, cfg.StateDBSizeMB)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		cfg:            cfg,
		db:             db,
		cache:          abicache.NewCache(db),
		reactor:        reactor,
		channels:       NewChannels(reactor),
		recoveredDepth: depth,
		blacklist:      make(map[uint64]map[uint64]struct{}),
	}

	r.addBlacklist("eosio", "onblock")
	r.addBlacklist("blocktwitter", "tweet")
	for _, entry := range cfg.BlacklistActions {
		account, action, ok := strings.Cut(entry, ":")
		if !ok {
			db.Close()
			return nil, fmt.Errorf("invalid blacklist entry %q, want account:action", entry)
		}
		r.addBlacklist(account, action)
	}

	instance = r
	return r, nil
}

func (r *Receiver) addBlacklist(account, action string) {
	acc := chain.StringToName(account)
	if r.blacklist[acc] == nil {
		r.blacklist[acc] = make(map[uint64]struct{})
	}
	r.blacklist[acc][chain.StringToName(action)] = struct{}{}
}

func (r *Receiver) Channels() *Channels {
	return r.channels
}

func (r *Receiver) DB() *statedb.DB {
	return r.db
}

// loadState hydrates the in-memory progress from the store and, if the
// store rolled back uncommitted revisions, announces the restart fork.
func (r *Receiver) loadState() {
	if p, ok := r.db.GetProgress(); ok {
		r.head = p.Head
		r.headID = p.HeadID
		r.irreversible = p.Irreversible
		r.irreversibleID = p.IrreversibleID
	}

	if r.recoveredDepth > 0 {
		logger.Printf("fork", "Reverted to block=%d, issuing an explicit fork event", r.head)
		r.channels.Forks.Publish(channelPriority, &ForkEvent{
			ForkBlockNum: r.head,
			Depth:        uint32(r.recoveredDepth),
			Reason:       ForkReasonRestart,
		})
		metricForks.Inc()
		r.recoveredDepth = 0
	}

	if r.exporterWillAck {
		r.exporterAckedBlock = r.head
	}

	r.cache.Reset()
}

// Run connects to the upstream and processes the stream until a fatal
// error or an abort. Dependencies are polled before the connection is
// opened.
func (r *Receiver) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	r.waitForDependencies(ctx)
	r.loadState()
	r.reactor.DrainPending()

	addr := "ws://" + r.cfg.Host + ":" + r.cfg.Port + "/"
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	conn.SetReadLimit(1 << 30)
	r.conn = conn

	err = r.readLoop(ctx)
	r.closeStream()
	if r.aborting {
		logger.Printf("receiver", "Receiver aborted at block=%d", r.head)
		return nil
	}
	return err
}

func (r *Receiver) readLoop(ctx context.Context) error {
	// the first frame carries the protocol ABI
	_, frame, err := r.conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read protocol abi: %w", err)
	}
	if err := r.loadProtocolAbi(frame); err != nil {
		return err
	}
	if err := r.requestBlocks(ctx); err != nil {
		return err
	}

	for {
		if r.aborting {
			return nil
		}
		if !r.checkPause(ctx) {
			continue
		}
		r.pauseTimeMsec = 0

		_, frame, err := r.conn.Read(ctx)
		if err != nil {
			if r.aborting {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
		if err := r.onResult(frame); err != nil {
			return err
		}
		r.reactor.DrainPending()
	}
}

func (r *Receiver) closeStream() {
	if r.conn != nil {
		r.conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (r *Receiver) waitForDependencies(ctx context.Context) {
	for {
		pending := ""
		for _, dep := range r.dependencies {
			if !dep.Started() {
				pending = dep.Name()
				break
			}
		}
		if pending == "" {
			return
		}
		logger.Printf("startup", "Waiting for dependent plugin: %s", pending)
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
	}
}

// --- control API, reachable through Instance() ---

var errAckRegression = errors.New("exporter acked block below previously acked one")

// ExporterWillAckBlocks switches the receiver into acknowledgment mode.
// At most one exporter may do this.
func (r *Receiver) ExporterWillAckBlocks(maxUnconfirmed uint32) {
	enforce.ENFORCE(!r.exporterWillAck, "only one exporter may acknowledge blocks")
	enforce.ENFORCE(maxUnconfirmed > 0, "max_unconfirmed must be positive")
	r.exporterWillAck = true
	r.exporterMaxUnconfirmed = maxUnconfirmed
	r.exporterAckedBlock = r.head
	logger.Printf("receiver", "Receiver will pause at %d unacknowledged blocks", maxUnconfirmed)
}

// AckBlock records downstream progress; going backwards is fatal.
func (r *Receiver) AckBlock(blockNum uint32) error {
	enforce.ENFORCE(r.exporterWillAck, "AckBlock without acknowledgment mode")
	if blockNum < r.exporterAckedBlock {
		logger.Error("Exporter acked block=%d, but block=%d was already acknowledged",
			blockNum, r.exporterAckedBlock)
		return errAckRegression
	}
	r.exporterAckedBlock = blockNum
	metricAckedBlock.Set(float64(blockNum))
	return nil
}

// Slowdown requests one backpressure pause, consumed at the next check.
func (r *Receiver) Slowdown() {
	r.slowdownRequested = true
}

// GetContractAbiCtxt ensures the account's ABI is loaded and returns
// the live decoder context.
func (r *Receiver) GetContractAbiCtxt(account uint64) *abicache.Cache {
	r.cache.Ready(account)
	return r.cache
}

// AddDependency delays Run's connection phase until dep reports
// started.
func (r *Receiver) AddDependency(dep Dependency) {
	r.dependencies = append(r.dependencies, dep)
}

// AbortReceiver closes the stream and prevents the current result from
// being committed.
func (r *Receiver) AbortReceiver() {
	r.aborting = true
	r.closeStream()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Receiver) Close() error {
	return r.db.Close()
}
