// Package chain reads minted identity records back from the deployed
// identity contracts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/idmint/idmint/internal/apperr"
)

// identityABI describes the read-only lookup exposed by the identity contracts.
const identityABI = `[{
  "type": "function",
  "name": "getIdentity",
  "stateMutability": "view",
  "inputs": [{"name": "owner", "type": "address"}],
  "outputs": [
    {"name": "uid", "type": "uint256"},
    {"name": "firstName", "type": "string"},
    {"name": "lastName", "type": "string"},
    {"name": "dateOfBirth", "type": "uint256"},
    {"name": "phone", "type": "string"}
  ]
}]`

const lookupMethod = "getIdentity"

// Record is the on-chain view of a minted identity.
type Record struct {
	UID         string
	FirstName   string
	LastName    string
	DateOfBirth *big.Int
	Phone       string
}

// Reader looks up the identity minted to targetAddress on contractAddress.
type Reader interface {
	IdentityRecord(ctx context.Context, contractAddress, targetAddress string) (Record, error)
}

// EthReader implements Reader over an EVM JSON-RPC endpoint.
type EthReader struct {
	caller  ethereum.ContractCaller
	abi     abi.ABI
	timeout time.Duration
}

// DialEthReader connects to rpcURL and returns a reader bound to it.
func DialEthReader(ctx context.Context, rpcURL string, timeout time.Duration) (*EthReader, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	reader, err := NewEthReader(client, timeout)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return reader, client, nil
}

// NewEthReader builds a reader over any contract caller.
func NewEthReader(caller ethereum.ContractCaller, timeout time.Duration) (*EthReader, error) {
	parsed, err := abi.JSON(strings.NewReader(identityABI))
	if err != nil {
		return nil, fmt.Errorf("parse identity abi: %w", err)
	}
	return &EthReader{caller: caller, abi: parsed, timeout: timeout}, nil
}

// IdentityRecord calls getIdentity(targetAddress) at the latest block. Every
// failure is reported as ChainReadFailed with the underlying error attached.
func (r *EthReader) IdentityRecord(ctx context.Context, contractAddress, targetAddress string) (Record, error) {
	if !common.IsHexAddress(contractAddress) {
		return Record{}, apperr.New(apperr.ErrChainRead, "invalid contract address "+contractAddress)
	}
	if !common.IsHexAddress(targetAddress) {
		return Record{}, apperr.New(apperr.ErrChainRead, "invalid target address "+targetAddress)
	}

	data, err := r.abi.Pack(lookupMethod, common.HexToAddress(targetAddress))
	if err != nil {
		return Record{}, apperr.Wrap(apperr.ErrChainRead, "encode identity lookup", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	contract := common.HexToAddress(contractAddress)
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return Record{}, apperr.Wrap(apperr.ErrChainRead, "identity lookup call", err)
	}

	values, err := r.abi.Unpack(lookupMethod, out)
	if err != nil {
		return Record{}, apperr.Wrap(apperr.ErrChainRead, "decode identity lookup", err)
	}
	return recordFromValues(values)
}

func recordFromValues(values []interface{}) (Record, error) {
	if len(values) != 5 {
		return Record{}, apperr.New(apperr.ErrChainRead, fmt.Sprintf("identity lookup returned %d values", len(values)))
	}
	uid, ok := values[0].(*big.Int)
	if !ok {
		return Record{}, apperr.New(apperr.ErrChainRead, "identity lookup returned a non-numeric uid")
	}
	rec := Record{UID: uid.String()}
	rec.FirstName, _ = values[1].(string)
	rec.LastName, _ = values[2].(string)
	rec.DateOfBirth, _ = values[3].(*big.Int)
	rec.Phone, _ = values[4].(string)
	return rec, nil
}
