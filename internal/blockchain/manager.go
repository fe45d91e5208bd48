package blockchain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/pkg/errors"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// LogSource is the slice of the node client the manager needs;
// satisfied by *Client and by stubs in tests.
type LogSource interface {
	ConfirmedBlockNumber(ctx context.Context) (int64, error)
	FilterEventLogs(ctx context.Context, eventName string, fromBlock, toBlock int64) ([]types.Log, error)
	SubscribeLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error)
	Close()
}

type DialFunc func() (LogSource, error)

var eventNames = []string{
	EventReviewAdded,
	EventSupported,
	EventReviewLiked,
	EventCheckinSuccessful,
}

// Manager owns the live subscription and the backfill scan. One instance
// per process, injected into whatever control surface toggles it. The
// state flag guards against duplicate subscriptions from concurrent
// Start calls.
type Manager struct {
	chainCfg       *config.ChainConfig
	decoder        *Decoder
	checkpointRepo *repository.CheckpointRepository
	handler        EventHandler
	dial           DialFunc

	// opMu serializes Start and Stop end to end, so a Stop issued
	// while a Start is mid-dial waits for it instead of racing past a
	// half-built listener
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr error
	source  LogSource
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pool    *WorkerPool
}

func NewManager(
	chainCfg *config.ChainConfig,
	decoder *Decoder,
	checkpointRepo *repository.CheckpointRepository,
	handler EventHandler,
	dial DialFunc,
) *Manager {
	return &Manager{
		chainCfg:       chainCfg,
		decoder:        decoder,
		checkpointRepo: checkpointRepo,
		handler:        handler,
		dial:           dial,
		state:          StateStopped,
	}
}

// Start transitions Stopped (or Error) → Starting, performs the one-time
// backfill from the last checkpoint, then subscribes to live logs.
// A no-op when already starting or running.
func (m *Manager) Start() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state != StateStopped && m.state != StateError {
		m.mu.Unlock()
		logger.Debug("listener start ignored, state ", string(m.state))
		return nil
	}
	m.state = StateStarting
	m.lastErr = nil
	m.mu.Unlock()

	source, err := m.dial()
	if err != nil {
		m.fail(err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(4, 256)

	m.mu.Lock()
	m.source = source
	m.cancel = cancel
	m.pool = pool
	m.mu.Unlock()

	pool.Start(func(ev Event) {
		if applyErr := m.handler.Apply(ctx, ev); applyErr != nil {
			logger.WithFields(map[string]interface{}{
				"event":   ev.Kind(),
				"tx_hash": ev.Meta().TxHash,
				"error":   applyErr.Error(),
			}).Error("event reconciliation failed, left for replay")
		}
	})

	if err := m.backfill(ctx, source); err != nil {
		// a failed backfill is not fatal: live delivery plus the replay
		// window will cover the gap
		logger.Warnf("backfill incomplete: %v", err)
	}

	logCh := make(chan types.Log, 256)
	sub, err := source.SubscribeLogs(ctx, logCh)
	if err != nil {
		m.teardown()
		m.fail(err)
		return err
	}

	m.mu.Lock()
	m.state = StateRunning
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, sub, logCh, pool)

	logger.WithFields(map[string]interface{}{
		"contract": m.chainCfg.ContractAddress,
	}).Info("listener running")

	return nil
}

func (m *Manager) run(ctx context.Context, sub ethereum.Subscription, logCh chan types.Log, pool *WorkerPool) {
	defer m.wg.Done()
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				logger.Error("log subscription failed: ", err)
				// release the pool and the client here: the next Start
				// builds fresh ones
				m.teardown()
				m.fail(err)
			}
			return
		case rawLog := <-logCh:
			ev, err := m.decoder.DecodeLog(rawLog)
			if err != nil {
				// dropped, not retried: the chain re-delivers the same
				// bytes on the next backfill
				logger.WithFields(map[string]interface{}{
					"tx_hash": rawLog.TxHash.Hex(),
					"block":   rawLog.BlockNumber,
					"error":   err.Error(),
				}).Warn("undecodable log dropped")
				continue
			}
			if !pool.Submit(ev) {
				logger.WithFields(map[string]interface{}{
					"event": ev.Kind(),
				}).Warn("event queue full, deferring to replay")
			}
		}
	}
}

// Stop unwinds the subscription and waits for in-flight handlers.
// A no-op when already stopped.
func (m *Manager) Stop() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state == StateStopped || m.state == StateStopping {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	m.mu.Unlock()

	cancel, pool, source := m.release()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if pool != nil {
		pool.Stop()
	}
	if source != nil {
		source.Close()
	}

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()

	logger.Info("listener stopped")
}

// release hands the current resources to exactly one caller; whoever
// gets non-nil values owns shutting them down.
func (m *Manager) release() (context.CancelFunc, *WorkerPool, LogSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, pool, source := m.cancel, m.pool, m.source
	m.cancel, m.pool, m.source = nil, nil, nil
	return cancel, pool, source
}

// teardown shuts down whatever release handed over. Safe from the run
// goroutine: it never waits on m.wg.
func (m *Manager) teardown() {
	cancel, pool, source := m.release()
	if cancel != nil {
		cancel()
	}
	if pool != nil {
		pool.Stop()
	}
	if source != nil {
		source.Close()
	}
}

// Status reports the running flag and the last recorded error.
func (m *Manager) Status() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	errMsg := ""
	if m.lastErr != nil {
		errMsg = m.lastErr.Error()
	}
	return m.state == StateRunning, errMsg
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QueueLength reports the backlog of decoded events awaiting a worker.
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return 0
	}
	return m.pool.QueueLength()
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.state = StateError
	m.lastErr = err
	m.mu.Unlock()
}

// backfill scans from the last checkpoint up to the confirmed head. A
// checkpoint marks its block as done, so scanning resumes one past it;
// the configured start block is itself unscanned and is included. No
// checkpoint and no configured origin: skip, accepting a gap that
// idempotent replay can close later.
func (m *Manager) backfill(ctx context.Context, source LogSource) error {
	last, err := m.checkpointRepo.GetLastProcessed(ctx, m.chainCfg.ContractAddress)
	if err != nil {
		return err
	}

	var fromBlock int64
	switch {
	case last > 0:
		fromBlock = last + 1
	case m.chainCfg.StartBlock > 0:
		fromBlock = m.chainCfg.StartBlock
	default:
		logger.Info("no checkpoint and no start block, skipping backfill")
		return nil
	}

	confirmed, err := source.ConfirmedBlockNumber(ctx)
	if err != nil {
		return err
	}
	if confirmed < fromBlock {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"from_block": fromBlock,
		"to_block":   confirmed,
	}).Info("backfilling event logs")

	return m.scanRange(ctx, source, fromBlock, confirmed, true)
}

// ReplayTail re-scans the trailing window of blocks through the same
// path as backfill. Invoked by the cron replay job; recovers events
// that were soft-skipped (review not synced yet) or dropped.
func (m *Manager) ReplayTail(ctx context.Context) error {
	m.mu.Lock()
	source := m.source
	running := m.state == StateRunning
	m.mu.Unlock()

	if !running || source == nil {
		return nil
	}

	confirmed, err := source.ConfirmedBlockNumber(ctx)
	if err != nil {
		return err
	}

	fromBlock := confirmed - m.chainCfg.ReplayWindow
	if fromBlock < 1 {
		fromBlock = 1
	}

	return m.scanRange(ctx, source, fromBlock, confirmed, false)
}

// scanRange applies all four event kinds over [fromBlock, toBlock] in
// batches. Events are applied inline, in order, awaiting each write;
// the checkpoint only advances past fully scanned batches.
func (m *Manager) scanRange(ctx context.Context, source LogSource, fromBlock, toBlock int64, advance bool) error {
	batchSize := int64(m.chainCfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	for start := fromBlock; start <= toBlock; start += batchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		end := start + batchSize - 1
		if end > toBlock {
			end = toBlock
		}

		for _, name := range eventNames {
			logs, err := source.FilterEventLogs(ctx, name, start, end)
			if err != nil {
				return err
			}

			for _, rawLog := range logs {
				ev, decodeErr := m.decoder.DecodeLog(rawLog)
				if decodeErr != nil {
					logger.WithFields(map[string]interface{}{
						"tx_hash": rawLog.TxHash.Hex(),
						"error":   decodeErr.Error(),
					}).Warn("undecodable log dropped during scan")
					continue
				}
				if applyErr := m.handler.Apply(ctx, ev); applyErr != nil {
					return errors.New(errors.ErrReconcile, "scan apply failed", applyErr)
				}
			}
		}

		if advance {
			if err := m.checkpointRepo.Advance(ctx, m.chainCfg.ContractAddress, end); err != nil {
				// checkpoint loss only widens the next backfill
				logger.Warn("checkpoint advance failed: ", err)
			}
		}
	}

	return nil
}
