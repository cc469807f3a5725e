package token

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// claimTokenABI is the narrow surface the ledger needs from an on-chain
// claim token. The full token implementation lives on-chain and is out of
// scope here.
const claimTokenABI = `[
	{"name":"mint","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"burn","type":"function","inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const wrapperABI = `[
	{"name":"withdraw","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// EVMSigner holds the key material and chain parameters shared by all
// EVM-backed adapters of one deployment.
type EVMSigner struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	chainID *big.Int
	from    common.Address
}

// NewEVMSigner dials rpcURL and prepares transact options for the hex
// private key. The key's address must hold the mint/burn roles on the claim
// tokens and the withdraw role on the wrapper.
func NewEVMSigner(ctx context.Context, rpcURL, privateKeyHex string, chainID int64) (*EVMSigner, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &EVMSigner{
		client:  client,
		key:     key,
		chainID: big.NewInt(chainID),
		from:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Close releases the underlying RPC connection.
func (s *EVMSigner) Close() { s.client.Close() }

func (s *EVMSigner) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("transact opts: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// EVMToken is a ClaimToken backed by an on-chain token contract.
type EVMToken struct {
	signer   *EVMSigner
	contract *bind.BoundContract
	addr     common.Address
	symbol   string
}

// NewEVMToken binds a claim token at addr.
func NewEVMToken(signer *EVMSigner, addr string, symbol string) (*EVMToken, error) {
	parsed, err := abi.JSON(strings.NewReader(claimTokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse claim token abi: %w", err)
	}
	a := common.HexToAddress(addr)
	return &EVMToken{
		signer:   signer,
		contract: bind.NewBoundContract(a, parsed, signer.client, signer.client, signer.client),
		addr:     a,
		symbol:   symbol,
	}, nil
}

func (t *EVMToken) Mint(ctx context.Context, to string, amount math.Int) error {
	opts, err := t.signer.transactOpts(ctx)
	if err != nil {
		return err
	}
	if _, err := t.contract.Transact(opts, "mint", common.HexToAddress(to), amount.BigInt()); err != nil {
		return fmt.Errorf("%s mint: %w", t.symbol, err)
	}
	return nil
}

func (t *EVMToken) Burn(ctx context.Context, from string, amount math.Int) error {
	opts, err := t.signer.transactOpts(ctx)
	if err != nil {
		return err
	}
	if _, err := t.contract.Transact(opts, "burn", common.HexToAddress(from), amount.BigInt()); err != nil {
		return fmt.Errorf("%s burn: %w", t.symbol, err)
	}
	return nil
}

func (t *EVMToken) TotalSupply(ctx context.Context) (math.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalSupply"); err != nil {
		return math.Int{}, fmt.Errorf("%s totalSupply: %w", t.symbol, err)
	}
	return bigOut(out)
}

func (t *EVMToken) BalanceOf(ctx context.Context, holder string) (math.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(holder)); err != nil {
		return math.Int{}, fmt.Errorf("%s balanceOf: %w", t.symbol, err)
	}
	return bigOut(out)
}

// EVMWrapper is a BaseAssetWrapper backed by the on-chain wrapper contract.
type EVMWrapper struct {
	signer   *EVMSigner
	contract *bind.BoundContract
	addr     common.Address
}

// NewEVMWrapper binds the base-asset wrapper at addr.
func NewEVMWrapper(signer *EVMSigner, addr string) (*EVMWrapper, error) {
	parsed, err := abi.JSON(strings.NewReader(wrapperABI))
	if err != nil {
		return nil, fmt.Errorf("parse wrapper abi: %w", err)
	}
	a := common.HexToAddress(addr)
	return &EVMWrapper{
		signer:   signer,
		contract: bind.NewBoundContract(a, parsed, signer.client, signer.client, signer.client),
		addr:     a,
	}, nil
}

func (w *EVMWrapper) Withdraw(ctx context.Context, to string, amount math.Int) error {
	opts, err := w.signer.transactOpts(ctx)
	if err != nil {
		return err
	}
	if _, err := w.contract.Transact(opts, "withdraw", common.HexToAddress(to), amount.BigInt()); err != nil {
		return fmt.Errorf("wrapper withdraw: %w", err)
	}
	return nil
}

func (w *EVMWrapper) Balance(ctx context.Context) (math.Int, error) {
	return w.balanceAt(ctx, w.addr)
}

func (w *EVMWrapper) balanceAt(ctx context.Context, addr common.Address) (math.Int, error) {
	var out []interface{}
	if err := w.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", addr); err != nil {
		return math.Int{}, fmt.Errorf("wrapper balance %s: %w", addr.Hex(), err)
	}
	return bigOut(out)
}

// EVMRevenuePool routes fees to a plain address through the wrapper.
type EVMRevenuePool struct {
	wrapper *EVMWrapper
	addr    string
}

// NewEVMRevenuePool creates a fee sink at addr, funded via wrapper
// withdrawals.
func NewEVMRevenuePool(wrapper *EVMWrapper, addr string) *EVMRevenuePool {
	return &EVMRevenuePool{wrapper: wrapper, addr: addr}
}

func (p *EVMRevenuePool) Collect(ctx context.Context, amount math.Int) error {
	if amount.IsZero() {
		return nil
	}
	return p.wrapper.Withdraw(ctx, p.addr, amount)
}

func (p *EVMRevenuePool) Collected(ctx context.Context) (math.Int, error) {
	return p.wrapper.balanceAt(ctx, common.HexToAddress(p.addr))
}

func bigOut(out []interface{}) (math.Int, error) {
	if len(out) != 1 {
		return math.Int{}, fmt.Errorf("token: unexpected output arity %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return math.Int{}, fmt.Errorf("token: unexpected output type %T", out[0])
	}
	return math.NewIntFromBigInt(v), nil
}
