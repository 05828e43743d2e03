package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/money-transfer/internal/transfer"
)

// SeedStore is the subset of the store the seeder needs.
type SeedStore interface {
	CountAccounts(ctx context.Context) (int64, error)
	CreateAccount(ctx context.Context, account *transfer.Account) error
}

// SeedSampleAccounts populates the store with sample accounts for
// development environments. It is a no-op when any accounts already exist.
func SeedSampleAccounts(ctx context.Context, store SeedStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	n, err := store.CountAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if n > 0 {
		logger.Info("accounts already present, skipping sample data", slog.Int64("count", n))
		return nil
	}

	accounts := SampleAccounts()
	for _, account := range accounts {
		if err := store.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", account.AccountID, err)
		}
		logger.Info("created sample account",
			slog.String("account_id", account.AccountID),
			slog.String("holder", account.HolderName),
			slog.String("balance", account.Balance.String()),
			slog.String("currency", string(account.Currency)),
		)
	}

	logger.Info("sample data initialized", slog.Int("accounts", len(accounts)))
	return nil
}

// SampleAccounts returns the fixed development account set.
func SampleAccounts() []*transfer.Account {
	return []*transfer.Account{
		sampleAccount("ACC001234567890", "user1", "John Doe", transfer.CurrencyUSD, "10000.00"),
		sampleAccount("ACC002345678901", "user1", "John Doe", transfer.CurrencyEUR, "8500.00"),
		sampleAccount("ACC003456789012", "user2", "Jane Smith", transfer.CurrencyUSD, "5000.00"),
		sampleAccount("ACC004567890123", "user2", "Jane Smith", transfer.CurrencyGBP, "3000.00"),
		sampleAccount("ACC005678901234", "user3", "Bob Johnson", transfer.CurrencyUSD, "7500.00"),
		sampleAccount("ACC006789012345", "user4", "Alice Brown", transfer.CurrencyEUR, "12000.00"),
		sampleAccount("ACC007890123456", "user5", "Charlie Wilson", transfer.CurrencyGBP, "4500.00"),
		sampleAccount("ACC008901234567", "user6", "Diana Davis", transfer.CurrencyUSD, "2000.00"),
	}
}

func sampleAccount(accountID, ownerID, holder string, currency transfer.Currency, balance string) *transfer.Account {
	now := time.Now().UTC()
	return &transfer.Account{
		AccountID:  accountID,
		OwnerID:    ownerID,
		HolderName: holder,
		Balance:    decimal.RequireFromString(balance),
		Currency:   currency,
		Status:     transfer.AccountActive,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
