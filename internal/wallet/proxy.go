// Package wallet derives the Polymarket proxy ("funding") wallet that the
// proxy factory deploys for an externally owned account.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Polygon mainnet proxy factory and the proxy implementation it clones.
var (
	ProxyFactory        = common.HexToAddress("0xaB45c5A4B0c941a2F231C04C3f49182e1A254052")
	ProxyImplementation = common.HexToAddress("0x44e999d5c2F66Ef0861317f9A4805AC2e90aEB4f")
)

// proxyBytecodeTemplate is the creation code of the factory's minimal
// proxy. The first %s receives the factory address and the second the
// implementation address, both as lowercase hex without 0x.
const proxyBytecodeTemplate = "3d3d606380380380913d393d73%s5af4602a57600080fd5b602d8060366000396000f3" +
	"363d3d373d3d3d363d73%s5af43d82803e903d91602b57fd5bf352e831dd" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"0000000000000000000000000000000000000000000000000000000000000000"

// Deriver computes CREATE2 proxy addresses for one factory deployment.
type Deriver struct {
	factory      common.Address
	initCodeHash []byte
}

// NewDeriver builds a Deriver for the given factory and implementation.
func NewDeriver(factory, implementation common.Address) (*Deriver, error) {
	code, err := hex.DecodeString(fmt.Sprintf(proxyBytecodeTemplate,
		strings.ToLower(factory.Hex()[2:]),
		strings.ToLower(implementation.Hex()[2:]),
	))
	if err != nil {
		return nil, fmt.Errorf("wallet: decode proxy bytecode: %w", err)
	}
	return &Deriver{
		factory:      factory,
		initCodeHash: ethcrypto.Keccak256(code),
	}, nil
}

// InitCodeHash returns keccak256 of the proxy creation code.
func (d *Deriver) InitCodeHash() common.Hash {
	return common.BytesToHash(d.initCodeHash)
}

// Derive returns the proxy address owned by eoa. The result depends only
// on its input and the deployment constants; nothing is checked on chain.
func (d *Deriver) Derive(eoa string) (common.Address, error) {
	owner, err := ParseAddress(eoa)
	if err != nil {
		return common.Address{}, err
	}
	return d.DeriveFrom(owner), nil
}

// DeriveFrom is Derive for an already parsed address.
func (d *Deriver) DeriveFrom(owner common.Address) common.Address {
	var salt [32]byte
	copy(salt[:], ethcrypto.Keccak256(owner.Bytes()))
	return ethcrypto.CreateAddress2(d.factory, salt, d.initCodeHash)
}

var mainnet *Deriver

func init() {
	d, err := NewDeriver(ProxyFactory, ProxyImplementation)
	if err != nil {
		panic(err)
	}
	mainnet = d
}

// DeriveProxyAddress returns the Polygon mainnet funding address for eoa.
func DeriveProxyAddress(eoa string) (common.Address, error) {
	return mainnet.Derive(eoa)
}

// ParseAddress validates a 0x-prefixed 20-byte hex address. Mixed-case
// input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("wallet: %q: missing 0x prefix: %w", s, domain.ErrInvalidAddress)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("wallet: %q: %w", s, domain.ErrInvalidAddress)
	}
	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("wallet: %q: bad checksum: %w", s, domain.ErrInvalidAddress)
	}
	return addr, nil
}
