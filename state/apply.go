package state

import (
	"encoding/binary"
	"time"

	"github.com/cascoin/cascoin-l2/core/types"
	"github.com/cascoin/cascoin-l2/crypto"
	"github.com/cascoin/cascoin-l2/metrics"
	"github.com/cascoin/cascoin-l2/params"
)

// Per-byte intrinsic gas costs, charged before execution.
const (
	gasPerZeroByte    = 4
	gasPerNonZeroByte = 16
	gasPerAccessTuple = 2400
)

// intrinsicGas returns the gas consumed before any execution happens.
func intrinsicGas(tx *types.Transaction) uint64 {
	gas := uint64(types.TxMinGas)
	for _, b := range tx.Data {
		if b == 0 {
			gas += gasPerZeroByte
		} else {
			gas += gasPerNonZeroByte
		}
	}
	gas += uint64(len(tx.AccessList)) * gasPerAccessTuple
	return gas
}

// ApplyTransaction executes tx against the current state. It is atomic: on
// any failure no account mutation is visible and the state root is
// unchanged.
func (m *Manager) ApplyTransaction(tx *types.Transaction, blockNumber uint64) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyTxLocked(tx, blockNumber)
}

// applyTxLocked validates and executes one transaction. Execution works on
// copies and commits only after every check has passed.
func (m *Manager) applyTxLocked(tx *types.Transaction, blockNumber uint64) (*types.Receipt, error) {
	if err := tx.ValidateStructure(); err != nil {
		return nil, err
	}
	gasUsed := intrinsicGas(tx)
	if gasUsed > tx.GasLimit {
		return nil, ErrIntrinsicGas
	}

	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		Status:      types.ReceiptStatusSucceeded,
		GasUsed:     gasUsed,
		BlockNumber: blockNumber,
	}

	if tx.IsDeposit() {
		// Deposits are L1-originated credits: no sender debit, no fee.
		if m.mintedTotal-m.burnedTotal+tx.Value > params.MaxMoney {
			return nil, ErrSupplyOverflow
		}
		to := m.getAccountLocked(tx.To)
		to.Balance += tx.Value
		to.LastActivity = blockNumber
		if err := m.setAccountLocked(tx.To, to); err != nil {
			return nil, err
		}
		m.mintedTotal += tx.Value
		m.depositTotal += tx.Value
		return receipt, nil
	}

	fee := int64(gasUsed) * tx.EffectiveGasPrice(0)
	sender := m.getAccountLocked(tx.From)
	if tx.Nonce != sender.Nonce {
		return nil, ErrNonceMismatch
	}
	if sender.Balance < tx.Value+fee {
		return nil, ErrInsufficientFunds
	}
	sender.Balance -= tx.Value + fee
	sender.Nonce++
	sender.LastActivity = blockNumber
	receipt.Fee = fee

	switch tx.Type {
	case types.TxWithdrawal:
		// Value leaves the L2; the fee stays behind.
		if err := m.setAccountLocked(tx.From, sender); err != nil {
			return nil, err
		}
		m.burnedTotal += tx.Value
		m.withdrawnTotal += tx.Value

	case types.TxContractDeploy:
		contractAddr := deployAddress(tx.From, tx.Nonce)
		codeHash := types.HashBytes(tx.Data)
		contract := m.getAccountLocked(contractAddr)
		contract.Balance += tx.Value
		contract.CodeHash = codeHash
		contract.LastActivity = blockNumber
		if err := m.setAccountLocked(tx.From, sender); err != nil {
			return nil, err
		}
		if err := m.setAccountLocked(contractAddr, contract); err != nil {
			return nil, err
		}
		m.code[codeHash] = append([]byte(nil), tx.Data...)
		receipt.ContractAddress = contractAddr

	default:
		// Transfer, contract call, cross-layer message, sequencer
		// announce, forced inclusion: move value to the recipient.
		if tx.From == tx.To {
			sender.Balance += tx.Value
			if err := m.setAccountLocked(tx.From, sender); err != nil {
				return nil, err
			}
		} else {
			to := m.getAccountLocked(tx.To)
			to.Balance += tx.Value
			to.LastActivity = blockNumber
			if err := m.setAccountLocked(tx.From, sender); err != nil {
				return nil, err
			}
			if err := m.setAccountLocked(tx.To, to); err != nil {
				return nil, err
			}
		}
	}

	if fee > 0 && !m.feeCollector.IsZero() && m.feeCollector != tx.From {
		collector := m.getAccountLocked(m.feeCollector)
		collector.Balance += fee
		if err := m.setAccountLocked(m.feeCollector, collector); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

// deployAddress derives a contract address from the deployer and the nonce
// it deployed at.
func deployAddress(from types.Address, nonce uint64) types.Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nonce)
	return crypto.Hash160Address(append(from.Bytes(), buf[:]...))
}

// ApplyBatch applies txs in order, all-or-nothing: if any transaction
// fails, the state is rolled back to the pre-batch root and the error names
// the offending index.
func (m *Manager) ApplyBatch(txs []*types.Transaction, blockNumber uint64) ([]*types.Receipt, error) {
	if len(txs) > params.MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		metrics.BatchApplyTime.Observe(float64(time.Since(start).Milliseconds()))
	}()

	undo := m.captureLocked()
	receipts := make([]*types.Receipt, 0, len(txs))
	for i, tx := range txs {
		r, err := m.applyTxLocked(tx, blockNumber)
		if err != nil {
			m.restoreLocked(undo)
			return nil, &BatchError{Index: i, TxHash: tx.Hash(), Err: err}
		}
		r.TxIndex = uint32(i)
		receipts = append(receipts, r)
	}
	return receipts, nil
}

// BatchError reports which transaction broke an atomic batch.
type BatchError struct {
	Index  int
	TxHash types.Hash
	Err    error
}

func (e *BatchError) Error() string {
	return "state: batch failed at tx " + e.TxHash.Hex() + ": " + e.Err.Error()
}

func (e *BatchError) Unwrap() error { return e.Err }

