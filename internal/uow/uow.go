package uow

import (
	"context"

	"github.com/kirinyoku/ferry-go/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	tx repository.Transactor
}

func New(tx repository.Transactor) *UoW {
	return &UoW{tx: tx}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks in registration order.
//
// Hooks registered by an attempt that was rolled back are discarded, so a
// transactor that retries fn never fires hooks twice.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, repos repository.Repositories, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.tx.RunTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		hooks = hooks[:0]
		return fn(ctx, repos, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// Repos returns repositories outside of any transaction, for reads.
func (u *UoW) Repos() repository.Repositories {
	return u.tx
}
