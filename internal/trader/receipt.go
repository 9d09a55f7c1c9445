package trader

import (
	"fmt"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/shopspring/decimal"
)

// mintReceipt creates a single, indivisible token describing the asset that
// was bought. The buyer may burn it once they no longer need it.
func mintReceipt(tx *ledger.Tx, asset *ledger.Bucket) (*ledger.Bucket, error) {
	rm := asset.ResourceManager()
	localID, err := asset.NonFungibleID()
	if err != nil {
		return nil, err
	}

	name, ok := rm.MetadataString("name")
	if !ok {
		name = rm.Address().String()
	}
	icon, _ := rm.MetadataString("icon_url")

	_, receipt, err := tx.NewResourceWithSupply(ledger.ResourceSpec{
		Type:         ledger.Fungible,
		Divisibility: 0,
		Burnable:     true,
		Metadata: map[string]interface{}{
			"name":             fmt.Sprintf("%s : %s", name, localID),
			"icon_url":         icon,
			"resource_address": rm.Address().String(),
			"local_id":         string(localID),
			"receipt":          "true",
		},
	}, decimal.NewFromInt(1))

	return receipt, err
}
