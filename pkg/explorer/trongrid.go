package explorer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	tronAddressPrefix = 0x41
	trc20Decimals     = 6
	trxDecimals       = 6
)

// TronGridClient reads TRON transactions through the TronGrid full-node HTTP API.
type TronGridClient struct {
	baseURL       string
	apiKey        string
	tokenContract string
	client        *http.Client
}

func NewTronGridClient(baseURL, apiKey, tokenContract string, timeout time.Duration) *TronGridClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TronGridClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		tokenContract: tokenContract,
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *TronGridClient) Network() string { return "TRON" }

type tronTransaction struct {
	TxID string `json:"txID"`
	Ret  []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
	RawData struct {
		Contract []struct {
			Type      string `json:"type"`
			Parameter struct {
				Value struct {
					OwnerAddress    string `json:"owner_address"`
					ToAddress       string `json:"to_address"`
					Amount          int64  `json:"amount"`
					ContractAddress string `json:"contract_address"`
					Data            string `json:"data"`
				} `json:"value"`
			} `json:"parameter"`
		} `json:"contract"`
	} `json:"raw_data"`
}

type tronTransactionInfo struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
	Receipt     struct {
		Result string `json:"result"`
	} `json:"receipt"`
}

func (c *TronGridClient) Lookup(ctx context.Context, hash string) (*Result, error) {
	var tx tronTransaction
	if err := c.post(ctx, "/wallet/gettransactionbyid", hash, &tx); err != nil {
		return nil, err
	}
	if tx.TxID == "" || len(tx.RawData.Contract) == 0 {
		return nil, nil
	}
	ct := tx.RawData.Contract[0]
	v := ct.Parameter.Value
	res := &Result{Found: true, Network: "TRON", TxHash: hash, Amount: decimal.Zero}
	res.Sender = hexToBase58(v.OwnerAddress)

	switch ct.Type {
	case "TriggerSmartContract":
		contract := hexToBase58(v.ContractAddress)
		if c.tokenContract != "" && contract != c.tokenContract {
			return res, nil // some other token; Amount stays zero
		}
		data := strings.ToLower(v.Data)
		if !strings.HasPrefix(data, strings.TrimPrefix(transferSelector, "0x")) || len(data) < 8+128 {
			return res, nil
		}
		res.Recipient = hexToBase58(fmt.Sprintf("%x", tronAddressPrefix) + data[8+24:8+64])
		amount, ok := new(big.Int).SetString(data[8+64:8+128], 16)
		if !ok {
			return nil, fmt.Errorf("TRON: transfer amount is not hex")
		}
		res.Amount = decimal.NewFromBigInt(amount, -trc20Decimals)
		res.Token = "USDT"
	case "TransferContract":
		res.Recipient = hexToBase58(v.ToAddress)
		res.Amount = decimal.New(v.Amount, -trxDecimals)
		res.Token = "TRX"
	}

	var info tronTransactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", hash, &info); err != nil {
		return nil, err
	}
	res.BlockNumber = info.BlockNumber
	success := len(tx.Ret) > 0 && tx.Ret[0].ContractRet == "SUCCESS"
	if ct.Type == "TriggerSmartContract" {
		success = success && info.Receipt.Result == "SUCCESS"
	}
	res.Confirmed = info.ID != "" && info.BlockNumber > 0 && success
	return res, nil
}

func (c *TronGridClient) post(ctx context.Context, path, hash string, out interface{}) error {
	body, _ := json.Marshal(map[string]string{"value": hash})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trongrid %s: http %d", path, resp.StatusCode)
	}
	// Unknown ids come back as an empty object.
	if len(bytes.TrimSpace(respBody)) == 0 || string(bytes.TrimSpace(respBody)) == "{}" {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// hexToBase58 converts a 41-prefixed hex TRON address to its base58check form.
// Inputs that are not 21-byte hex are returned unchanged.
func hexToBase58(h string) string {
	raw, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || len(raw) != 21 {
		return h
	}
	return Base58CheckEncode(raw)
}
