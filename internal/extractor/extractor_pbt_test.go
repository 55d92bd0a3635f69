package extractor

import (
	"encoding/hex"
	"strings"
	"testing"
	"unicode"

	"github.com/address-discovery/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func mixCase(s string, upper []bool) string {
	var b strings.Builder
	for i, r := range s {
		if i < len(upper) && upper[i] {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestProperty_HexCanonicalization(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any casing of a hex address canonicalizes to the same lowercase form", prop.ForAll(
		func(raw []uint8, upper []bool) bool {
			lower := "0x" + hex.EncodeToString(raw)
			mixed := "0x" + mixCase(lower[2:], upper)

			found := FindCandidates("tip jar " + mixed + " !")
			if len(found) != 1 || found[0].Coin != types.CoinEthereum {
				return false
			}
			canonical := Canonicalize(found[0].Address)
			return canonical == lower && Canonicalize(canonical) == canonical
		},
		gen.SliceOfN(20, gen.UInt8()),
		gen.SliceOfN(40, gen.Bool()),
	))

	properties.Property("lowercase hex addresses always validate", prop.ForAll(
		func(raw []uint8) bool {
			addr := "0x" + hex.EncodeToString(raw)
			return Validate(Candidate{Address: addr, Coin: types.CoinEthereum}) == types.StatusValid
		},
		gen.SliceOfN(20, gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestProperty_VerdictCoverage(t *testing.T) {
	properties := gopter.NewProperties(nil)

	coins := make([]interface{}, 0, len(types.AllCoins)+1)
	for _, c := range types.AllCoins {
		coins = append(coins, c)
	}
	coins = append(coins, types.CoinType("other"))

	properties.Property("validate yields exactly one known verdict", prop.ForAll(
		func(address string, coin types.CoinType) bool {
			switch Validate(Candidate{Address: address, Coin: coin}) {
			case types.StatusValid, types.StatusInvalid, types.StatusUnknown:
				return true
			default:
				return false
			}
		},
		gen.AnyString(),
		gen.OneConstOf(coins...),
	))

	properties.Property("every extracted candidate carries a known coin label", prop.ForAll(
		func(text string) bool {
			for _, c := range FindCandidates(text) {
				if !c.Coin.IsValid() {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
