package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// transferSelector is the ERC-20 transfer(address,uint256) method id.
const transferSelector = "0xa9059cbb"

// EtherscanClient talks to any Etherscan-compatible explorer (Etherscan,
// BscScan, PolygonScan) through its JSON-RPC proxy module.
type EtherscanClient struct {
	network       string
	baseURL       string
	apiKey        string
	tokenContract string
	tokenDecimals int32
	tokenSymbol   string
	nativeSymbol  string
	client        *http.Client
}

type EtherscanConfig struct {
	Network       string
	BaseURL       string
	APIKey        string
	TokenContract string
	TokenDecimals int32
	TokenSymbol   string
	NativeSymbol  string
	Timeout       time.Duration
}

func NewEtherscanClient(cfg EtherscanConfig) *EtherscanClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	symbol := cfg.TokenSymbol
	if symbol == "" {
		symbol = "USDT"
	}
	return &EtherscanClient{
		network:       cfg.Network,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		tokenContract: strings.ToLower(cfg.TokenContract),
		tokenDecimals: cfg.TokenDecimals,
		tokenSymbol:   symbol,
		nativeSymbol:  cfg.NativeSymbol,
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *EtherscanClient) Network() string { return c.network }

type rpcEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type rpcTransaction struct {
	BlockNumber *string `json:"blockNumber"`
	From        string  `json:"from"`
	To          *string `json:"to"`
	Value       string  `json:"value"`
	Input       string  `json:"input"`
}

type rpcReceipt struct {
	Status      string  `json:"status"`
	BlockNumber *string `json:"blockNumber"`
}

func (c *EtherscanClient) Lookup(ctx context.Context, hash string) (*Result, error) {
	var tx rpcTransaction
	found, err := c.call(ctx, "eth_getTransactionByHash", hash, &tx)
	if err != nil || !found {
		return nil, err
	}
	res := &Result{Found: true, Network: c.network, TxHash: hash, Sender: checksum(tx.From), Amount: decimal.Zero}

	to := ""
	if tx.To != nil {
		to = strings.ToLower(*tx.To)
	}
	if c.tokenContract != "" && to == c.tokenContract && strings.HasPrefix(strings.ToLower(tx.Input), transferSelector) {
		recipient, amount, err := decodeTransfer(tx.Input)
		if err != nil {
			return nil, err
		}
		res.Recipient = recipient
		res.Amount = decimal.NewFromBigInt(amount, -c.tokenDecimals)
		res.Token = c.tokenSymbol
	} else {
		wei, err := hexutil.DecodeBig(tx.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: bad value %q: %w", c.network, tx.Value, err)
		}
		res.Recipient = checksum(to)
		res.Amount = decimal.NewFromBigInt(wei, -18)
		res.Token = c.nativeSymbol
	}

	if tx.BlockNumber == nil {
		return res, nil // still in the mempool
	}
	if n, err := hexutil.DecodeUint64(*tx.BlockNumber); err == nil {
		res.BlockNumber = n
	}

	var receipt rpcReceipt
	ok, err := c.call(ctx, "eth_getTransactionReceipt", hash, &receipt)
	if err != nil {
		return nil, err
	}
	res.Confirmed = ok && receipt.BlockNumber != nil && receipt.Status == "0x1"
	return res, nil
}

// call runs one proxy action. It reports false when the explorer returned a
// null result, which is how unknown hashes come back.
func (c *EtherscanClient) call(ctx context.Context, action, hash string, out interface{}) (bool, error) {
	q := url.Values{}
	q.Set("module", "proxy")
	q.Set("action", action)
	q.Set("txhash", hash)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s %s: http %d", c.network, action, resp.StatusCode)
	}
	var env rpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("%s %s: %w", c.network, action, err)
	}
	if env.Error != nil {
		return false, fmt.Errorf("%s %s: %s", c.network, action, env.Error.Message)
	}
	if env.Status == "0" {
		// Non-proxy error shape, e.g. rate limit or bad key.
		return false, fmt.Errorf("%s %s: %s", c.network, action, env.Message)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return false, fmt.Errorf("%s %s result: %w", c.network, action, err)
	}
	return true, nil
}

// decodeTransfer unpacks transfer(address,uint256) call data.
func decodeTransfer(input string) (string, *big.Int, error) {
	data := strings.TrimPrefix(strings.ToLower(input), "0x")
	// selector (8) + address word (64) + amount word (64)
	if len(data) < 8+64+64 {
		return "", nil, fmt.Errorf("transfer input too short: %d chars", len(data))
	}
	recipient := common.HexToAddress("0x" + data[8+24:8+64])
	amount, ok := new(big.Int).SetString(data[8+64:8+128], 16)
	if !ok {
		return "", nil, fmt.Errorf("transfer amount is not hex")
	}
	return recipient.Hex(), amount, nil
}

func checksum(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}
