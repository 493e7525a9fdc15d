// internal/service/ledger/domain/payout_plan.go
package domain

import "github.com/pkg/errors"

// PlanPayoutRequest 创建 PENDING 申请。此时不扣款，余额只在审批时重新校验。
func (l *Ledger) PlanPayoutRequest(caller Principal, amount, now int64) (*Changeset, PayoutRequest, error) {
	if _, ok := l.associates[caller]; !ok {
		return nil, PayoutRequest{}, errors.Wrapf(ErrNotRegistered, "principal %s", caller)
	}
	if amount <= 0 {
		return nil, PayoutRequest{}, errors.Wrapf(ErrInvalidAmount, "payout of %d", amount)
	}
	if w := l.Wallet(caller); amount > w.Balance {
		return nil, PayoutRequest{}, errors.Wrapf(ErrInsufficientBalance, "balance %d, requested %d", w.Balance, amount)
	}
	req := PayoutRequest{
		ID:          l.next.payout,
		Associate:   caller,
		Amount:      amount,
		Status:      PayoutPending,
		RequestedAt: now,
	}
	cs := NewChangeset()
	cs.Payouts = append(cs.Payouts, req)
	cs.emit(Event{Type: EventPayoutRequested, Associate: caller, PayoutID: req.ID, Amount: amount, Status: string(PayoutPending), OccurredAt: now})
	return cs, req, nil
}

// PlanPayoutProcessing 审批或拒绝一个 PENDING 申请。
// 批准时余额不足则返回 ErrInsufficientBalance，申请保持 PENDING。
func (l *Ledger) PlanPayoutProcessing(requestID uint64, approved bool, processor Principal, now int64) (*Changeset, PayoutRequest, error) {
	req, ok := l.payouts[requestID]
	if !ok {
		return nil, PayoutRequest{}, errors.Wrapf(ErrPayoutNotFound, "payout %d", requestID)
	}
	if req.IsTerminal() {
		return nil, PayoutRequest{}, errors.Wrapf(ErrPayoutAlreadyProcessed, "payout %d is %s", requestID, req.Status)
	}

	cs := NewChangeset()
	var (
		processed PayoutRequest
		err       error
	)
	if approved {
		w, debitErr := l.draftWallet(cs, req.Associate).Debit(req.Amount, now)
		if debitErr != nil {
			return nil, PayoutRequest{}, errors.WithMessagef(debitErr, "approve payout %d", requestID)
		}
		cs.Wallets[req.Associate] = w
		processed, err = req.Approve(processor, now)
	} else {
		processed, err = req.Reject(processor, now)
	}
	if err != nil {
		return nil, PayoutRequest{}, err
	}
	cs.Payouts = append(cs.Payouts, processed)
	cs.emit(Event{Type: EventPayoutProcessed, Associate: req.Associate, Counterparty: processor, PayoutID: requestID, Amount: req.Amount, Status: string(processed.Status), OccurredAt: now})
	return cs, processed, nil
}

// PlanWalletAdjustment 把会员余额直接设为 amount，差额计入 TotalEarned
func (l *Ledger) PlanWalletAdjustment(by, associate Principal, amount, now int64) (*Changeset, error) {
	if _, ok := l.associates[associate]; !ok {
		return nil, errors.Wrapf(ErrAssociateNotFound, "principal %s", associate)
	}
	before := l.Wallet(associate)
	w, err := before.SetBalance(amount, now)
	if err != nil {
		return nil, err
	}
	cs := NewChangeset()
	cs.Wallets[associate] = w
	cs.emit(Event{Type: EventWalletAdjusted, Associate: associate, Counterparty: by, Amount: amount - before.Balance, OccurredAt: now})
	return cs, nil
}
