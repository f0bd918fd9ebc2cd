package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/seedframe-io/seedframe/internal/logging"
)

// Asset is one entry of the uniform asset-list schema returned by
// wallet_getAssets. The native asset is always first.
type Asset struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Amount   uint64 `json:"amount"`
	Native   bool   `json:"native,omitempty"`
}

// Mint describes a configured token the wallet surfaces by default.
type Mint struct {
	Address  string `mapstructure:"address" json:"address"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Name     string `mapstructure:"name" json:"name"`
	Decimals uint8  `mapstructure:"decimals" json:"decimals"`
}

const (
	nativeSymbol   = "SOL"
	nativeName     = "Solana"
	nativeDecimals = 9
)

// AssetService shapes balances into the asset-list schema.
type AssetService struct {
	client Client
	mints  []Mint
}

func NewAssetService(client Client, mints []Mint) *AssetService {
	return &AssetService{client: client, mints: mints}
}

// List fetches the owner's balances. A native-balance failure is fatal;
// individual token failures (typically a not-yet-created token account) are
// logged and reported as zero so one bad mint cannot hide the rest.
func (s *AssetService) List(ctx context.Context, owner solana.PublicKey) ([]Asset, error) {
	native, err := s.client.Balance(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]Asset, 0, 1+len(s.mints))
	out = append(out, Asset{
		Address:  owner.String(),
		Symbol:   nativeSymbol,
		Name:     nativeName,
		Decimals: nativeDecimals,
		Amount:   native,
		Native:   true,
	})

	for _, m := range s.mints {
		mint, err := solana.PublicKeyFromBase58(m.Address)
		if err != nil {
			logging.Warn("skipping configured mint with bad address", "address", m.Address, "error", err)
			continue
		}
		amount, err := s.client.TokenBalance(ctx, owner, mint)
		if err != nil {
			logging.Debug("token balance unavailable", "mint", m.Address, "error", err)
			amount = 0
		}
		out = append(out, Asset{
			Address:  m.Address,
			Symbol:   m.Symbol,
			Name:     m.Name,
			Decimals: m.Decimals,
			Amount:   amount,
		})
	}
	return out, nil
}
