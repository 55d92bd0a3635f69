package extractor

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/address-discovery/internal/types"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// base58Versions lists the accepted version bytes per coin (P2PKH then P2SH).
var base58Versions = map[types.CoinType][]byte{
	types.CoinBitcoin:  {0x00, 0x05},
	types.CoinLitecoin: {0x30, 0x32, 0x05},
	types.CoinDoge:     {0x1e, 0x16},
}

// Validate returns the structural verdict for a candidate. It never panics:
// a failure inside a coin validator is reported as invalid.
func Validate(c Candidate) (status types.ValidationStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = types.StatusInvalid
		}
	}()

	switch c.Coin {
	case types.CoinEthereum:
		return verdict(isEthereumAddress(c.Address))
	case types.CoinBitcoin, types.CoinLitecoin, types.CoinDoge:
		return verdict(isBase58CheckAddress(c.Address, base58Versions[c.Coin]))
	case types.CoinBech32:
		return verdict(isSegwitAddress(c.Address, "bc"))
	default:
		return types.StatusUnknown
	}
}

func verdict(ok bool) types.ValidationStatus {
	if ok {
		return types.StatusValid
	}
	return types.StatusInvalid
}

// isEthereumAddress accepts all-lowercase or all-uppercase hex, and mixed case
// only when it equals the EIP-55 checksum encoding.
func isEthereumAddress(address string) bool {
	if !common.IsHexAddress(address) || !strings.HasPrefix(address, "0x") {
		return false
	}

	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(address).Hex() == address
}

// isBase58CheckAddress decodes a 25 byte version+hash160+checksum payload.
func isBase58CheckAddress(address string, versions []byte) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 25 {
		return false
	}

	payload, checksum := decoded[:21], decoded[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], checksum) {
		return false
	}

	return bytes.IndexByte(versions, payload[0]) >= 0
}

// isSegwitAddress checks hrp, witness version and program length.
func isSegwitAddress(address string, hrp string) bool {
	decodedHRP, data, version, err := bech32.DecodeGeneric(address)
	if err != nil || decodedHRP != hrp || len(data) == 0 {
		return false
	}

	witnessVersion := data[0]
	if witnessVersion > 16 {
		return false
	}
	// v0 uses bech32, v1+ uses bech32m
	if (witnessVersion == 0) != (version == bech32.Version0) {
		return false
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil || len(program) < 2 || len(program) > 40 {
		return false
	}
	if witnessVersion == 0 && len(program) != 20 && len(program) != 32 {
		return false
	}
	return true
}
