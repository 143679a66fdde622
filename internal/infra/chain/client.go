// Package chain reads ProposalInitialized events from a voting strategy
// contract over JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const (
	proposalInitializedEvent = "ProposalInitialized"
	defaultMaxBlockRange     = 2000
)

const votingStrategyABI = `[{
  "anonymous": false,
  "inputs": [
    {"indexed": false, "internalType": "uint32", "name": "proposalId", "type": "uint32"},
    {"indexed": false, "internalType": "uint32", "name": "votingEndBlock", "type": "uint32"}
  ],
  "name": "ProposalInitialized",
  "type": "event"
}]`

// LogReader is the subset of *ethclient.Client the poller uses.
type LogReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// ProposalInitialized is one decoded event.
type ProposalInitialized struct {
	ProposalID     uint32 `abi:"proposalId"`
	VotingEndBlock uint32 `abi:"votingEndBlock"`
	BlockNumber    uint64
	TxHash         common.Hash
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// ProposalPoller walks the chain forward from the head it first sees and
// returns new ProposalInitialized events. Poll must not be called
// concurrently; Cursor may be.
type ProposalPoller struct {
	reader   LogReader
	contract common.Address
	abi      abi.ABI
	topic    common.Hash
	maxRange uint64
	logger   *logrus.Entry

	mu      sync.Mutex
	next    uint64
	started bool
}

func NewProposalPoller(reader LogReader, contract common.Address, logger *logrus.Entry) (*ProposalPoller, error) {
	parsed, err := abi.JSON(strings.NewReader(votingStrategyABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse voting strategy abi: %w", err)
	}
	return &ProposalPoller{
		reader:   reader,
		contract: contract,
		abi:      parsed,
		topic:    parsed.Events[proposalInitializedEvent].ID,
		maxRange: defaultMaxBlockRange,
		logger:   logger,
	}, nil
}

// Poll returns events emitted since the previous call together with the
// current head block number.
func (p *ProposalPoller) Poll(ctx context.Context) ([]ProposalInitialized, uint64, error) {
	head, err := p.reader.BlockNumber(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read block number: %w", err)
	}

	p.mu.Lock()
	if !p.started {
		p.next = head
		p.started = true
	}
	from := p.next
	p.mu.Unlock()

	if from > head {
		return nil, head, nil
	}
	to := head
	if to-from+1 > p.maxRange {
		to = from + p.maxRange - 1
	}

	logs, err := p.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{p.contract},
		Topics:    [][]common.Hash{{p.topic}},
	})
	if err != nil {
		return nil, head, fmt.Errorf("failed to filter logs %d..%d: %w", from, to, err)
	}

	events := make([]ProposalInitialized, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := p.decode(lg)
		if err != nil {
			// A malformed log must not pin the cursor.
			p.logger.WithError(err).WithFields(logrus.Fields{
				"tx_hash":   lg.TxHash.Hex(),
				"log_index": lg.Index,
				"block":     lg.BlockNumber,
			}).Warn("Skipping undecodable ProposalInitialized log")
			continue
		}
		events = append(events, ev)
	}

	p.mu.Lock()
	p.next = to + 1
	p.mu.Unlock()
	return events, head, nil
}

func (p *ProposalPoller) decode(lg types.Log) (ProposalInitialized, error) {
	var ev ProposalInitialized
	if err := p.abi.UnpackIntoInterface(&ev, proposalInitializedEvent, lg.Data); err != nil {
		return ProposalInitialized{}, fmt.Errorf("failed to decode log %s#%d: %w", lg.TxHash.Hex(), lg.Index, err)
	}
	ev.BlockNumber = lg.BlockNumber
	ev.TxHash = lg.TxHash
	return ev, nil
}

// Cursor is the next block the poller will scan.
func (p *ProposalPoller) Cursor() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
