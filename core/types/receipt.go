package types

// Receipt status codes.
const (
	ReceiptStatusFailed    uint64 = 0
	ReceiptStatusSucceeded uint64 = 1
)

// Log is an event emitted during transaction execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// Receipt records the outcome of a single transaction.
type Receipt struct {
	TxHash      Hash
	TxIndex     uint32
	Status      uint64
	GasUsed     uint64
	Fee         int64
	BlockNumber uint64
	// ContractAddress is set for successful deployments.
	ContractAddress Address
	Logs            []*Log
}

// Succeeded reports whether the transaction executed without error.
func (r *Receipt) Succeeded() bool { return r.Status == ReceiptStatusSucceeded }

// ComputeReceiptsRoot builds a binary Merkle root over receipt hashes, with
// the same duplicate-last padding as the transaction root.
func ComputeReceiptsRoot(receipts []*Receipt) Hash {
	if len(receipts) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(receipts))
	for i, r := range receipts {
		level[i] = RLPHash(&rlpReceipt{
			TxHash:          r.TxHash,
			TxIndex:         r.TxIndex,
			Status:          r.Status,
			GasUsed:         r.GasUsed,
			Fee:             uint64(r.Fee),
			BlockNumber:     r.BlockNumber,
			ContractAddress: r.ContractAddress,
		})
	}
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := range next {
			next[i] = HashBytes(level[2*i].Bytes(), level[2*i+1].Bytes())
		}
		level = next
	}
	return level[0]
}

type rlpReceipt struct {
	TxHash          Hash
	TxIndex         uint32
	Status          uint64
	GasUsed         uint64
	Fee             uint64
	BlockNumber     uint64
	ContractAddress Address
}
