package ledger

import "testing"

func TestStatementRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     StatementRecord
		wantErr bool
	}{
		{
			name: "valid credit card",
			rec:  StatementRecord{Kind: KindCreditCard, Transactions: []LineItem{{}}},
		},
		{
			name: "valid bank",
			rec:  StatementRecord{Kind: KindBank, Deposits: []LineItem{{}}},
		},
		{
			name:    "unknown kind",
			rec:     StatementRecord{Kind: "receipt"},
			wantErr: true,
		},
		{
			name:    "credit card with bank arrays",
			rec:     StatementRecord{Kind: KindCreditCard, Withdrawals: []LineItem{{}}},
			wantErr: true,
		},
		{
			name:    "bank with card arrays",
			rec:     StatementRecord{Kind: KindBank, Rewards: []LineItem{{}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatementRecord_Items(t *testing.T) {
	card := StatementRecord{Kind: KindCreditCard}
	if card.Items(ArrayTransactions) == nil || card.Items(ArrayRewards) == nil {
		t.Error("credit card record must expose transactions and rewards")
	}
	if card.Items(ArrayWithdrawals) != nil {
		t.Error("credit card record must not expose bank arrays")
	}

	bank := StatementRecord{Kind: KindBank}
	if bank.Items(ArrayWithdrawals) == nil || bank.Items(ArrayDeposits) == nil {
		t.Error("bank record must expose withdrawals and deposits")
	}
	if bank.Items(ArrayRewards) != nil {
		t.Error("bank record must not expose card arrays")
	}
}

func TestStatementRecord_Clone(t *testing.T) {
	amount := 12.5
	rec := &StatementRecord{
		Kind:         KindCreditCard,
		Transactions: []LineItem{{Description: "a", Amount: &amount}},
		TotalAmount:  &amount,
	}

	clone := rec.Clone()
	*clone.Transactions[0].Amount = 99
	clone.Transactions[0].Description = "b"
	*clone.TotalAmount = 99

	if *rec.Transactions[0].Amount != 12.5 || rec.Transactions[0].Description != "a" {
		t.Error("Clone must deep copy line items")
	}
	if *rec.TotalAmount != 12.5 {
		t.Error("Clone must deep copy pointer fields")
	}
}
