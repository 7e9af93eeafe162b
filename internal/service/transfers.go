package service

import (
	"context"
	"fmt"

	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
	"flash-trader/internal/storage"
)

const dispatchBatch = 100

// FlashLoan queues a pool-to-borrower transfer and dispatches it.
func (s *Service) FlashLoan(ctx context.Context, borrower identity.Pubkey, amount uint64) (storage.TransferRecord, error) {
	t, err := engine.FlashLoan(borrower, amount)
	if err != nil {
		s.metrics.RecordError("flash_loan")
		return storage.TransferRecord{}, err
	}
	return s.submit(ctx, "flash_loan", t)
}

// BuybackBurn queues a burn of amount from the configured burn vault.
func (s *Service) BuybackBurn(ctx context.Context, amount uint64) (storage.TransferRecord, error) {
	if s.burnVault.IsZero() {
		return storage.TransferRecord{}, fmt.Errorf("burn vault not configured")
	}
	t, err := engine.BuybackBurn(s.burnVault, amount)
	if err != nil {
		s.metrics.RecordError("burn")
		return storage.TransferRecord{}, err
	}
	return s.submit(ctx, "burn", t)
}

func (s *Service) submit(ctx context.Context, op string, t engine.Transfer) (storage.TransferRecord, error) {
	var rec storage.TransferRecord
	err := s.withLock(ctx, op, func() error {
		queued, err := s.repo.InsertTransfers(ctx, []engine.Transfer{t})
		if err != nil {
			return err
		}
		s.metrics.RecordTransfer(string(t.Purpose), storage.TransferPending)
		queued = s.dispatch(ctx, queued)
		rec = queued[0]
		return nil
	})
	return rec, err
}

// DispatchPending retries every pending transfer. It returns how many were sent.
func (s *Service) DispatchPending(ctx context.Context) (int, error) {
	var sent int
	err := s.withLock(ctx, "dispatch", func() error {
		pending, err := s.repo.ListPendingTransfers(ctx, dispatchBatch)
		if err != nil {
			return err
		}
		for _, rec := range s.dispatch(ctx, pending) {
			if rec.Status == storage.TransferSent {
				sent++
			}
		}
		return nil
	})
	return sent, err
}

// dispatch hands records to the executor. Failures stay pending for the next tick.
// Returned records carry their updated status.
func (s *Service) dispatch(ctx context.Context, records []storage.TransferRecord) []storage.TransferRecord {
	if s.executor == nil {
		return records
	}

	out := make([]storage.TransferRecord, len(records))
	copy(out, records)
	for i, rec := range out {
		if err := s.executor.Execute(ctx, rec); err != nil {
			s.metrics.RecordTransfer(string(rec.Transfer.Purpose), "failed")
			s.logger.Error().Err(err).Int64("id", rec.ID).Str("purpose", string(rec.Transfer.Purpose)).Msg("transfer failed")
			continue
		}
		if err := s.repo.MarkTransferSent(ctx, rec.ID); err != nil {
			s.logger.Error().Err(err).Int64("id", rec.ID).Msg("failed to mark transfer sent")
			continue
		}
		out[i].Status = storage.TransferSent
		s.metrics.RecordTransfer(string(rec.Transfer.Purpose), storage.TransferSent)
	}
	return out
}
