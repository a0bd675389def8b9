// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoActiveRound     = errors.New("no active round")
	ErrRoundNotWaiting   = errors.New("round is not waiting")
	ErrRoundNotRunning   = errors.New("round is not running")
	ErrSessionNotFound   = errors.New("farm session not found")
	ErrSessionExists     = errors.New("farm session already exists")
	ErrOwnerSeatTaken    = errors.New("owner seat already taken")
	ErrNotOwner          = errors.New("user is not the owner")
	ErrCodeNotFound      = errors.New("gift code not found")
	ErrCodeExhausted     = errors.New("gift code has no uses left")
	ErrAlreadyClaimed    = errors.New("gift code already claimed by user")
)

// Querier is the subset of pgx operations the repositories need. It is
// satisfied by *pgxpool.Pool and by pgx.Tx, so settlement paths can run the
// same statements inside an explicit transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Multi-row money movements (round settlement, farm claim,
// house counterparty payout) go through here so no partial balance change
// can survive a failure.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
