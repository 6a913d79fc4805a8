package wallet

import (
	"context"

	"github.com/mrivas/defi-agent/internal/chain"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// Wallet abstracts key custody. Address reports the signing address for a
// network and SignAndSendTransaction signs and broadcasts a prepared payload,
// returning a receipt that can be waited on for confirmation.
type Wallet interface {
	Address(network id.Chain) (string, error)
	SignAndSendTransaction(ctx context.Context, network id.Chain, payload model.TransactionPayload) (chain.Receipt, error)
}
