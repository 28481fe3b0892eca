package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peraclub/rewards/pkg/rewards"
	"github.com/shopspring/decimal"
)

const (
	errorOperationStore     = "store"
	errorSubjectProfile     = "profile"
	errorSubjectEntry       = "entry"
	errorSubjectRedemption  = "redemption"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeUpdate         = "update"

	sqlInsertProfile = `
		insert into user_profiles(
			id, user_id, full_name, email, phone_number,
			total_points, available_points, redeemed_points, tier,
			member_since, member_number
		)
		values(gen_random_uuid(), $1, $2, $3, nullif($4,''), $5, $6, $7, $8, $9, $10)
	`

	sqlSelectProfile = `
		select user_id, full_name, email, coalesce(phone_number,''),
			total_points, available_points, redeemed_points, tier,
			member_since, member_number
		from user_profiles
		where user_id = $1
	`

	sqlUpdateProfilePoints = `
		update user_profiles
		set total_points = $2, available_points = $3, redeemed_points = $4, updated_at = now()
		where user_id = $1
	`

	sqlUpdateProfileTier = `
		update user_profiles
		set tier = $2, updated_at = now()
		where user_id = $1
	`

	sqlListTransactions = `
		select id::text, user_id, type, amount, description, status,
			coalesce(reference_id::text,''), created_at
		from transactions
		where user_id = $1
		order by created_at desc
		limit $2
	`

	sqlInsertTransaction = `
		insert into transactions(id, user_id, type, amount, description, status, reference_id, created_at)
		values(coalesce(nullif($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, nullif($7,'')::uuid, $8)
	`

	sqlUpdateTransactionStatusByReference = `
		update transactions
		set status = $3, updated_at = now()
		where reference_id = $1::uuid and status = $2
	`

	sqlInsertRedemption = `
		insert into redemption_requests(
			id, user_id, account_id, full_name, gcash_number,
			points_redeemed, cash_amount, status, created_at
		)
		values($1::uuid, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
	`

	sqlSelectRedemption = `
		select id::text, user_id, account_id, full_name, gcash_number,
			points_redeemed, cash_amount::text, status, created_at
		from redemption_requests
		where id = $1::uuid
	`

	sqlListRedemptions = `
		select id::text, user_id, account_id, full_name, gcash_number,
			points_redeemed, cash_amount::text, status, created_at
		from redemption_requests
		where user_id = $1
		order by created_at desc
	`

	sqlUpdateRedemptionStatus = `
		update redemption_requests
		set status = $3,
			processed_at = case when $3 in ('completed','rejected') then now() else processed_at end,
			updated_at = now()
		where id = $1::uuid and status = $2
	`
)

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements rewards.Store using a pgx connection pool (autocommit
// outside WithTx).
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore rewards.Store) error) error {
	if store.pool == nil {
		// Already inside a transaction; pg has no nesting here.
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &Store{q: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateProfile(ctx context.Context, profile rewards.AccountProfile) error {
	memberSince := profile.MemberSince
	if memberSince.IsZero() {
		memberSince = time.Now().UTC()
	}
	_, err := store.q.Exec(ctx, sqlInsertProfile,
		profile.UserID,
		profile.FullName,
		profile.Email,
		profile.PhoneNumber,
		profile.TotalPoints.Int64(),
		profile.AvailablePoints.Int64(),
		profile.RedeemedPoints.Int64(),
		profile.Tier.String(),
		memberSince,
		profile.MemberNumber,
	)
	if err != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetProfile(ctx context.Context, userID string) (rewards.AccountProfile, error) {
	var (
		profile     rewards.AccountProfile
		total       int64
		available   int64
		redeemed    int64
		tierValue   string
		memberSince time.Time
	)
	err := store.q.QueryRow(ctx, sqlSelectProfile, userID).Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Email,
		&profile.PhoneNumber,
		&total,
		&available,
		&redeemed,
		&tierValue,
		&memberSince,
		&profile.MemberNumber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.AccountProfile{}, rewards.ErrProfileNotFound
	}
	if err != nil {
		return rewards.AccountProfile{}, wrapUpstream(errorSubjectProfile, errorCodeGet, err)
	}
	profile.TotalPoints = rewards.Points(total)
	profile.AvailablePoints = rewards.Points(available)
	profile.RedeemedPoints = rewards.Points(redeemed)
	profile.Tier = rewards.Tier(tierValue)
	profile.MemberSince = memberSince
	return profile, nil
}

func (store *Store) UpdateProfilePoints(ctx context.Context, userID string, total, available, redeemed rewards.Points) error {
	tag, err := store.q.Exec(ctx, sqlUpdateProfilePoints, userID, total.Int64(), available.Int64(), redeemed.Int64())
	if err != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return rewards.ErrProfileNotFound
	}
	return nil
}

func (store *Store) UpdateProfileTier(ctx context.Context, userID string, tier rewards.Tier) error {
	tag, err := store.q.Exec(ctx, sqlUpdateProfileTier, userID, tier.String())
	if err != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return rewards.ErrProfileNotFound
	}
	return nil
}

func (store *Store) ListEntries(ctx context.Context, userID string, limit int) ([]rewards.LedgerEntry, error) {
	rows, err := store.q.Query(ctx, sqlListTransactions, userID, limit)
	if err != nil {
		return nil, wrapUpstream(errorSubjectEntry, errorCodeList, err)
	}
	defer rows.Close()

	var entries []rewards.LedgerEntry
	for rows.Next() {
		var (
			entry     rewards.LedgerEntry
			kindValue string
			amount    int64
			status    string
		)
		err := rows.Scan(
			&entry.EntryID,
			&entry.UserID,
			&kindValue,
			&amount,
			&entry.Description,
			&status,
			&entry.ReferenceID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		kind, err := rewards.ParseEntryKind(kindValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		if amount < 0 {
			amount = -amount
		}
		entry.Kind = kind
		entry.Amount = rewards.Points(amount)
		entry.Status = rewards.EntryStatus(status)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUpstream(errorSubjectEntry, errorCodeList, err)
	}
	return entries, nil
}

func (store *Store) InsertEntry(ctx context.Context, entry rewards.LedgerEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.q.Exec(ctx, sqlInsertTransaction,
		entry.EntryID,
		entry.UserID,
		entry.Kind.String(),
		entry.Amount.Int64(),
		entry.Description,
		entry.Status.String(),
		entry.ReferenceID,
		createdAt,
	)
	if err != nil {
		return wrapUpstream(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

// UpdateEntryStatusByReference flips the paired ledger entry of a redemption
// request. The pair is best-effort: no matching row is not an error.
func (store *Store) UpdateEntryStatusByReference(ctx context.Context, referenceID string, from, to rewards.EntryStatus) error {
	_, err := store.q.Exec(ctx, sqlUpdateTransactionStatusByReference, referenceID, from.String(), to.String())
	if err != nil {
		return wrapUpstream(errorSubjectEntry, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) InsertRedemption(ctx context.Context, request rewards.RedemptionRequest) error {
	createdAt := request.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.q.Exec(ctx, sqlInsertRedemption,
		request.RequestID,
		request.UserID,
		request.PayoutAccountID,
		request.PayoutName,
		request.PayoutNumber,
		request.PointsRedeemed.Int64(),
		request.CashAmount.String(),
		request.Status.String(),
		createdAt,
	)
	if err != nil {
		return wrapUpstream(errorSubjectRedemption, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetRedemption(ctx context.Context, requestID string) (rewards.RedemptionRequest, error) {
	request, err := scanRedemption(store.q.QueryRow(ctx, sqlSelectRedemption, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.RedemptionRequest{}, rewards.ErrRedemptionNotFound
	}
	if err != nil {
		return rewards.RedemptionRequest{}, wrapUpstream(errorSubjectRedemption, errorCodeGet, err)
	}
	return request, nil
}

func (store *Store) ListRedemptions(ctx context.Context, userID string) ([]rewards.RedemptionRequest, error) {
	rows, err := store.q.Query(ctx, sqlListRedemptions, userID)
	if err != nil {
		return nil, wrapUpstream(errorSubjectRedemption, errorCodeList, err)
	}
	defer rows.Close()

	var requests []rewards.RedemptionRequest
	for rows.Next() {
		request, err := scanRedemption(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRedemption, errorCodeInvalid, err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUpstream(errorSubjectRedemption, errorCodeList, err)
	}
	return requests, nil
}

func (store *Store) UpdateRedemptionStatus(ctx context.Context, requestID string, from, to rewards.RedemptionStatus) error {
	tag, err := store.q.Exec(ctx, sqlUpdateRedemptionStatus, requestID, from.String(), to.String())
	if err != nil {
		return wrapUpstream(errorSubjectRedemption, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return rewards.ErrRedemptionClosed
	}
	return nil
}

func scanRedemption(row pgx.Row) (rewards.RedemptionRequest, error) {
	var (
		request    rewards.RedemptionRequest
		points     int64
		cashValue  string
		statusName string
	)
	err := row.Scan(
		&request.RequestID,
		&request.UserID,
		&request.PayoutAccountID,
		&request.PayoutName,
		&request.PayoutNumber,
		&points,
		&cashValue,
		&statusName,
		&request.CreatedAt,
	)
	if err != nil {
		return rewards.RedemptionRequest{}, err
	}
	cash, err := decimal.NewFromString(cashValue)
	if err != nil {
		return rewards.RedemptionRequest{}, err
	}
	request.PointsRedeemed = rewards.Points(points)
	request.CashAmount = cash
	request.Status = rewards.RedemptionStatus(statusName)
	return request, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return rewards.WrapError(errorOperationStore, subject, code, err)
}

func wrapUpstream(subject string, code string, err error) error {
	return wrapStoreError(subject, code, fmt.Errorf("%w: %v", rewards.ErrUpstream, err))
}
