package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// TaskError accumulates the per-record errors of a bulk import.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString(" ")
		b.WriteString(err.Error())
		b.WriteString(";")
	}
	return b.String()
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ImportUser is one signup in a bulk import. ReferrerID names another user
// of the import (or an existing user); its code is resolved at import time.
type ImportUser struct {
	RegisterUserInput
	ReferrerID string
}

// BulkIngestor replays signups and payments using worker pools.
type BulkIngestor struct {
	referral  *ReferralService
	purchases *PurchaseService
	workers   int
}

// NewBulkIngestor creates a new BulkIngestor instance with the provided concurrency.
func NewBulkIngestor(referral *ReferralService, purchases *PurchaseService, workers int) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	return &BulkIngestor{
		referral:  referral,
		purchases: purchases,
		workers:   workers,
	}
}

// IngestUsers registers users generation by generation: a user is only
// registered once its referrer exists. Users of one generation run
// concurrently.
func (bi *BulkIngestor) IngestUsers(ctx context.Context, users []ImportUser) error {
	var taskErr TaskError
	for _, wave := range importWaves(users) {
		err := bi.run(ctx, len(wave), func(idx int) error {
			in := wave[idx]
			if in.ReferrerID != "" && in.ReferralCode == "" {
				code, err := bi.referral.EnsureReferralCode(ctx, in.ReferrerID)
				if err != nil {
					return fmt.Errorf("user %s: referrer %s: %w", in.ID, in.ReferrerID, err)
				}
				in.ReferralCode = code
			}
			if _, err := bi.referral.RegisterUser(ctx, in.RegisterUserInput); err != nil {
				return fmt.Errorf("user %s: %w", in.ID, err)
			}
			return nil
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var te *TaskError
		if errors.As(err, &te) {
			taskErr.Errors = append(taskErr.Errors, te.Errors...)
		}
	}
	return taskErr.asError()
}

// IngestPurchases confirms payments concurrently.
func (bi *BulkIngestor) IngestPurchases(ctx context.Context, purchases []PurchaseInput) error {
	if bi.purchases == nil {
		return errors.New("purchase service not configured")
	}
	return bi.run(ctx, len(purchases), func(idx int) error {
		in := purchases[idx]
		res, err := bi.purchases.ConfirmPurchase(ctx, in)
		if err != nil {
			return fmt.Errorf("purchase %s: %w", in.SourceID, err)
		}
		if failed := res.Report.Failed(); len(failed) > 0 {
			return fmt.Errorf("purchase %s: %d commission payouts failed", in.SourceID, len(failed))
		}
		return nil
	})
}

// importWaves orders users so every referrer inside the import lands in an
// earlier wave than its referees. Referrers outside the import are assumed to
// exist already.
func importWaves(users []ImportUser) [][]ImportUser {
	index := make(map[string]int, len(users))
	for i, u := range users {
		index[u.ID] = i
	}
	depth := make([]int, len(users))
	for i := range depth {
		depth[i] = -1
	}
	var resolve func(i int, seen int) int
	resolve = func(i int, seen int) int {
		if depth[i] >= 0 {
			return depth[i]
		}
		parent, ok := index[users[i].ReferrerID]
		if !ok || parent == i || seen > len(users) {
			depth[i] = 0
			return 0
		}
		depth[i] = resolve(parent, seen+1) + 1
		return depth[i]
	}

	var waves [][]ImportUser
	for i := range users {
		d := resolve(i, 0)
		for len(waves) <= d {
			waves = append(waves, nil)
		}
		waves[d] = append(waves[d], users[i])
	}
	return waves
}

func (bi *BulkIngestor) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
