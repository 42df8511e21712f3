// Package explorer looks up on-chain transfers through public block explorer
// APIs (the Etherscan family for EVM chains and TronGrid for TRON).
package explorer

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result describes a transfer found on chain.
type Result struct {
	Found       bool            `json:"found"`
	Network     string          `json:"network"`
	TxHash      string          `json:"tx_hash"`
	Sender      string          `json:"sender"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	BlockNumber uint64          `json:"block_number"`
	Confirmed   bool            `json:"confirmed"`
}

// Client looks a transaction hash up on one network. A nil Result with a nil
// error means the hash is unknown there.
type Client interface {
	Network() string
	Lookup(ctx context.Context, hash string) (*Result, error)
}

// LookupHook observes every lookup outcome ("found", "not_found", "error").
type LookupHook func(network, outcome string)

var (
	evmHashRe  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	bareHashRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// ValidHash reports whether hash looks like an EVM (0x-prefixed) or TRON
// (bare hex) transaction id.
func ValidHash(hash string) bool {
	return evmHashRe.MatchString(hash) || bareHashRe.MatchString(hash)
}

// CanonicalHash returns the lowercase bare-hex form of a transaction id, so
// "0xABC..." and "abc..." name the same transfer. Invalid input yields "".
func CanonicalHash(hash string) string {
	hash = strings.TrimSpace(hash)
	if !ValidHash(hash) {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(hash, "0x"))
}

// Oracle fans a lookup out over the configured networks.
type Oracle struct {
	clients []Client
	log     *zap.Logger
	hook    LookupHook
}

func NewOracle(log *zap.Logger, hook LookupHook, clients ...Client) *Oracle {
	return &Oracle{clients: clients, log: log.Named("explorer"), hook: hook}
}

// Networks lists the networks the oracle can search.
func (o *Oracle) Networks() []string {
	out := make([]string, 0, len(o.clients))
	for _, c := range o.clients {
		out = append(out, c.Network())
	}
	return out
}

// CheckTransactionAcrossNetworks tries every network that accepts the hash
// shape and returns the first hit. Failing networks are logged and skipped;
// nothing is retried. A miss everywhere yields Result{Found: false}.
func (o *Oracle) CheckTransactionAcrossNetworks(ctx context.Context, hash string) (*Result, error) {
	hash = strings.TrimSpace(hash)
	for _, c := range o.clients {
		candidate, ok := hashFor(c.Network(), hash)
		if !ok {
			continue
		}
		res, err := c.Lookup(ctx, candidate)
		switch {
		case err != nil:
			o.observe(c.Network(), "error")
			o.log.Warn("explorer lookup failed",
				zap.String("network", c.Network()), zap.String("hash", hash), zap.Error(err))
			continue
		case res == nil || !res.Found:
			o.observe(c.Network(), "not_found")
			continue
		}
		o.observe(c.Network(), "found")
		res.Network = c.Network()
		return res, nil
	}
	return &Result{Found: false, TxHash: hash, Amount: decimal.Zero}, nil
}

// CheckOnNetwork looks the hash up on a single network.
func (o *Oracle) CheckOnNetwork(ctx context.Context, network, hash string) (*Result, error) {
	for _, c := range o.clients {
		if c.Network() != network {
			continue
		}
		candidate, ok := hashFor(network, strings.TrimSpace(hash))
		if !ok {
			return &Result{Found: false, TxHash: hash, Amount: decimal.Zero}, nil
		}
		res, err := c.Lookup(ctx, candidate)
		if err != nil {
			o.observe(network, "error")
			return nil, err
		}
		if res == nil || !res.Found {
			o.observe(network, "not_found")
			return &Result{Found: false, TxHash: hash, Network: network, Amount: decimal.Zero}, nil
		}
		o.observe(network, "found")
		res.Network = network
		return res, nil
	}
	return &Result{Found: false, TxHash: hash, Amount: decimal.Zero}, nil
}

func (o *Oracle) observe(network, outcome string) {
	if o.hook != nil {
		o.hook(network, outcome)
	}
}

// hashFor adapts hash to the shape a network expects. TRON ids are bare hex;
// EVM hashes carry the 0x prefix.
func hashFor(network, hash string) (string, bool) {
	isTron := network == "TRON"
	switch {
	case evmHashRe.MatchString(hash):
		if isTron {
			return "", false
		}
		return strings.ToLower(hash), true
	case bareHashRe.MatchString(hash):
		if isTron {
			return strings.ToLower(hash), true
		}
		return "0x" + strings.ToLower(hash), true
	}
	return "", false
}
