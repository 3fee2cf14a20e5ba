// Package chaincfg defines the consensus parameters of the supported
// networks and the versionbits deployment machinery.
package chaincfg

import (
	"encoding/hex"
	"math/big"
	"time"

	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/script"
)

// DeploymentPos identifies a softfork deployment slot.
type DeploymentPos int

const (
	DeploymentTestDummy DeploymentPos = iota
	DeploymentDeadpool
	maxDeployments
)

// Versionbits sentinel times.
const (
	NeverActive int64 = -2
	NoTimeout   int64 = 1<<63 - 1
	AlwaysStart int64 = 0
)

// Deployment describes one versionbits softfork.
type Deployment struct {
	Bit                 uint8
	StartTime           int64
	Timeout             int64
	MinActivationHeight int32
}

// Params holds everything consensus needs to know about a network.
type Params struct {
	Name string

	// Proof of work
	PowLimit                    uint16 // minimum allowed nBits
	PowTargetTimespan           int64  // seconds
	PowTargetSpacing            int64  // seconds
	PowAllowMinDifficultyBlocks bool
	PowNoRetargeting            bool
	MillerRabinRounds           int
	HashRounds                  int

	// Versionbits
	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow       uint32
	Deployments                   [maxDeployments]Deployment

	// Deadpool
	DeadpoolAnnounceMaturity int32
	DeadpoolAnnounceValidity int32
	DeadpoolAnnounceMinBurn  block.Amount

	MinimumChainWork *big.Int

	Genesis     block.Block
	GenesisHash chainhash.Hash

	// Address encoding parameters in the form btcutil understands.
	Address *btcchaincfg.Params
}

// DifficultyAdjustmentInterval returns the retarget period in blocks.
func (p *Params) DifficultyAdjustmentInterval() int64 {
	return p.PowTargetTimespan / p.PowTargetSpacing
}

// registerAddressParams makes the network's address encoding known to
// btcutil. Bech32 decoding consults the registry, so this must run before
// any address parsing. Building the same network twice is harmless.
func registerAddressParams(p *btcchaincfg.Params) {
	if err := btcchaincfg.Register(p); err != nil && err != btcchaincfg.ErrDuplicateNet {
		panic(err)
	}
}

const genesisTimestamp = "The Times 4/20/2022 Russia Strikes Hard as It Pushes to Seize Donbas Region"

var genesisOutputKey = mustHex("04678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5f")

// Genesis nP1 values per network, selected on the genesis timestamp the way
// the node has always done it.
var genesisP1 = map[uint32]string{
	1650443545: "b5ff",                          // regtest
	1650442708: "166ad939aed84a268f7c2ae4f5d",   // testnet
	1650449340: "5b541e0fc53ad9c40daa99c31c17b", // mainnet
}

func createGenesisBlock(nTime uint32, nNonce uint64, nBits uint16, nVersion int32, wOffset int64, reward block.Amount) block.Block {
	scriptSig := script.Script{}.
		AddData([]byte{0xff, 0xff, 0x00, 0x1d}).
		AddData([]byte{0x04}).
		AddData([]byte(genesisTimestamp))

	outScript := script.Script{}.AddData(genesisOutputKey).AddOp(script.OP_CHECKSIG)

	coinbase := &block.Tx{
		Version: 1,
		In: []*block.TxIn{{
			PrevOut:   block.OutPoint{Index: 0xffffffff},
			ScriptSig: scriptSig,
			Sequence:  0xffffffff,
		}},
		Out: []*block.TxOut{{
			Value:        reward,
			ScriptPubKey: outScript,
		}},
	}

	genesis := block.Block{
		Header: block.Header{
			Version: nVersion,
			Time:    nTime,
			Bits:    nBits,
			Nonce:   nNonce,
			WOffset: wOffset,
		},
		Txs: []*block.Tx{coinbase},
	}

	if p1, ok := genesisP1[nTime]; ok {
		v, _ := new(big.Int).SetString(p1, 16)
		genesis.Header.NP1.SetBig(v)
	}

	genesis.Header.HashMerkle = block.MerkleRoot(genesis.Txs)

	return genesis
}

// MainNetParams is the network people trade goods and services on.
func MainNetParams() *Params {
	genesis := createGenesisBlock(1650449340, 4081969520, 230, 0, 2375, 0)

	p := &Params{
		Name: "main",

		PowLimit:                    230,
		PowTargetTimespan:           14 * 24 * 60 * 60,
		PowTargetSpacing:            30 * 60,
		PowAllowMinDifficultyBlocks: false,
		PowNoRetargeting:            false,

		// False positive rate of 4^-rounds. The bignum library docs suggest
		// 32 - 50 as a reasonable range; we chose the high end.
		MillerRabinRounds: 50,
		HashRounds:        1,

		RuleChangeActivationThreshold: 639, // 95% of 672
		MinerConfirmationWindow:       672,

		DeadpoolAnnounceMaturity: 100,
		DeadpoolAnnounceValidity: 672,
		DeadpoolAnnounceMinBurn:  1000000, // 0.01 COIN

		MinimumChainWork: big.NewInt(0x10a8),

		Genesis:     genesis,
		GenesisHash: genesis.Hash(),

		Address: &btcchaincfg.Params{
			Name:             "factorn",
			Net:              wire.BitcoinNet(0xfecafeca),
			Bech32HRPSegwit:  "fact",
			PubKeyHashAddrID: 0,
			ScriptHashAddrID: 5,
			PrivateKeyID:     128,
			HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
			HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
		},
	}

	p.Deployments[DeploymentTestDummy] = Deployment{
		Bit:                 28,
		StartTime:           NeverActive,
		Timeout:             NoTimeout,
		MinActivationHeight: 1,
	}
	p.Deployments[DeploymentDeadpool] = Deployment{
		Bit:                 27,
		StartTime:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Timeout:             time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Unix(),
		MinActivationHeight: 155000,
	}

	registerAddressParams(p.Address)

	return p
}

// TestNetParams is the public test network.
func TestNetParams() *Params {
	genesis := createGenesisBlock(1650442708, 4143631544, 210, 0, -2813, 0)

	p := &Params{
		Name: "test",

		PowLimit:                    210,
		PowTargetTimespan:           24 * 60 * 60,
		PowTargetSpacing:            5 * 60,
		PowAllowMinDifficultyBlocks: true,
		PowNoRetargeting:            false,
		MillerRabinRounds:           50,
		HashRounds:                  1,

		RuleChangeActivationThreshold: 90, // 75% for testchains
		MinerConfirmationWindow:       288,

		DeadpoolAnnounceMaturity: 5,
		DeadpoolAnnounceValidity: 100,
		DeadpoolAnnounceMinBurn:  1000000,

		MinimumChainWork: big.NewInt(0x10a8),

		Genesis:     genesis,
		GenesisHash: genesis.Hash(),

		Address: &btcchaincfg.Params{
			Name:             "factorn-test",
			Net:              wire.BitcoinNet(0x8802c7fa),
			Bech32HRPSegwit:  "tfact",
			PubKeyHashAddrID: 111,
			ScriptHashAddrID: 196,
			PrivateKeyID:     239,
			HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
			HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		},
	}

	p.Deployments[DeploymentTestDummy] = Deployment{
		Bit:       28,
		StartTime: NeverActive,
		Timeout:   NoTimeout,
	}
	p.Deployments[DeploymentDeadpool] = Deployment{
		Bit:       27,
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Timeout:   NoTimeout,
	}

	registerAddressParams(p.Address)

	return p
}

// SigNetParams is the signature-gated test network.
func SigNetParams() *Params {
	genesis := createGenesisBlock(1640995299, 52613770, 33, 1, 0, 0)

	p := &Params{
		Name: "signet",

		PowLimit:                    32,
		PowTargetTimespan:           14 * 24 * 60 * 60,
		PowTargetSpacing:            30 * 60,
		PowAllowMinDifficultyBlocks: false,
		PowNoRetargeting:            false,
		MillerRabinRounds:           50,
		HashRounds:                  1,

		RuleChangeActivationThreshold: 1815,
		MinerConfirmationWindow:       672,

		DeadpoolAnnounceMaturity: 5,
		DeadpoolAnnounceValidity: 100,
		DeadpoolAnnounceMinBurn:  1000000,

		MinimumChainWork: big.NewInt(0x10a8),

		Genesis:     genesis,
		GenesisHash: genesis.Hash(),

		Address: &btcchaincfg.Params{
			Name:             "factorn-signet",
			Net:              wire.BitcoinNet(0x50c7363a),
			Bech32HRPSegwit:  "tb",
			PubKeyHashAddrID: 111,
			ScriptHashAddrID: 196,
			PrivateKeyID:     239,
			HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
			HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		},
	}

	p.Deployments[DeploymentTestDummy] = Deployment{
		Bit:       28,
		StartTime: NeverActive,
		Timeout:   NoTimeout,
	}
	p.Deployments[DeploymentDeadpool] = Deployment{
		Bit:                 27,
		StartTime:           AlwaysStart,
		Timeout:             NoTimeout,
		MinActivationHeight: int32(4 * 672),
	}

	registerAddressParams(p.Address)

	return p
}

// RegTestParams is for private regression testing: minimal difficulty so
// blocks can be found instantly.
func RegTestParams() *Params {
	genesis := createGenesisBlock(1650443545, 2706135317, 32, 0, 254, 0)

	p := &Params{
		Name: "regtest",

		PowLimit:                    32,
		PowTargetTimespan:           14 * 24 * 60 * 60,
		PowTargetSpacing:            30 * 60,
		PowAllowMinDifficultyBlocks: true,
		PowNoRetargeting:            true,
		MillerRabinRounds:           50,
		HashRounds:                  1,

		RuleChangeActivationThreshold: 24, // 75% for testchains
		MinerConfirmationWindow:       32,

		DeadpoolAnnounceMaturity: 5,
		DeadpoolAnnounceValidity: 100,
		DeadpoolAnnounceMinBurn:  1000000,

		MinimumChainWork: big.NewInt(0x10a8),

		Genesis:     genesis,
		GenesisHash: genesis.Hash(),

		Address: &btcchaincfg.Params{
			Name:             "factorn-regtest",
			Net:              wire.BitcoinNet(0xbeeddbbe),
			Bech32HRPSegwit:  "bcrt",
			PubKeyHashAddrID: 111,
			ScriptHashAddrID: 196,
			PrivateKeyID:     239,
			HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94},
			HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		},
	}

	p.Deployments[DeploymentTestDummy] = Deployment{
		Bit:       28,
		StartTime: AlwaysStart,
		Timeout:   NoTimeout,
	}
	p.Deployments[DeploymentDeadpool] = Deployment{
		Bit:                 27,
		StartTime:           AlwaysStart,
		Timeout:             NoTimeout,
		MinActivationHeight: int32(4 * 32),
	}

	registerAddressParams(p.Address)

	return p
}

// ParamsForNetwork resolves a network name.
func ParamsForNetwork(name string) *Params {
	switch name {
	case "main", "mainnet":
		return MainNetParams()
	case "test", "testnet":
		return TestNetParams()
	case "signet":
		return SigNetParams()
	case "regtest":
		return RegTestParams()
	default:
		return nil
	}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
