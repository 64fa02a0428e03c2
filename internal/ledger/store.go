package ledger

import "context"

// Store is the ledger persistence contract. The primary and the mirror
// store both implement it; the Processor, the webhook reconciler and the
// mirror coordinator depend only on this interface.
type Store interface {
	CreateWallet(ctx context.Context, w *Wallet) error
	GetWalletByUserID(ctx context.Context, userID string) (*Wallet, error)
	GetWalletByID(ctx context.Context, walletID string) (*Wallet, error)
	DeleteWallet(ctx context.Context, walletID string) error

	// ApplyTransaction creates the transaction record and swaps in the new
	// wallet aggregates in one unit. The wallet row is matched on the
	// version the caller read; ErrConflict is returned when another writer
	// got there first and nothing is applied.
	ApplyTransaction(ctx context.Context, w *Wallet, tx *Transaction) error

	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	GetTransactionByID(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error)
	CountTransactions(ctx context.Context, walletID string) (int64, error)

	// UpsertWallet and UpsertTransaction exist for mirror replication and
	// mirror-originated change events; they bypass the version check and
	// must be followed by RecomputeAggregates on the affected wallet when
	// aggregates could have drifted.
	UpsertWallet(ctx context.Context, w *Wallet) error
	UpsertTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, txID string) error

	// RecomputeAggregates rebuilds the wallet aggregates by replaying all
	// successful transactions for the wallet.
	RecomputeAggregates(ctx context.Context, walletID string) (*Wallet, error)

	// SampleWallets returns up to limit wallets for the divergence scan.
	SampleWallets(ctx context.Context, limit int) ([]Wallet, error)
}
