package academic

import (
	"time"

	"school_grading/backend/internal/shared"
)

// FindFee returns the fee with billID or nil
func (y *AcademicYear) FindFee(billID string) *Fee {
	for i := range y.Fees {
		if y.Fees[i].BillID == billID {
			return &y.Fees[i]
		}
	}
	return nil
}

// AddFee appends a fee; a billID already on the record is rejected
func (y *AcademicYear) AddFee(fee Fee, now time.Time) error {
	if err := shared.ValidateStruct(fee); err != nil {
		return err
	}
	if y.FindFee(fee.BillID) != nil {
		return shared.Invalidf("billID %s already exists on record %s", fee.BillID, y.ID)
	}
	if fee.PaymentDate.IsZero() {
		fee.PaymentDate = now
	}
	y.Fees = append(y.Fees, fee)
	y.UpdatedAt = now
	return nil
}

// UpdateFee applies patch to the fee with billID
func (y *AcademicYear) UpdateFee(billID string, patch FeePatch, now time.Time) error {
	if err := shared.ValidateStruct(patch); err != nil {
		return err
	}
	fee := y.FindFee(billID)
	if fee == nil {
		return shared.NotFoundf("fee %s on record %s", billID, y.ID)
	}

	if patch.Type != nil {
		fee.Type = *patch.Type
	}
	if patch.Amount != nil {
		fee.Amount = *patch.Amount
	}
	if patch.PaymentMethod != nil {
		fee.PaymentMethod = *patch.PaymentMethod
	}
	if patch.PaymentDate != nil {
		fee.PaymentDate = *patch.PaymentDate
	}
	y.UpdatedAt = now
	return nil
}

// DeleteFee removes the fee with billID
func (y *AcademicYear) DeleteFee(billID string, now time.Time) error {
	for i := range y.Fees {
		if y.Fees[i].BillID == billID {
			y.Fees = append(y.Fees[:i], y.Fees[i+1:]...)
			y.UpdatedAt = now
			return nil
		}
	}
	return shared.NotFoundf("fee %s on record %s", billID, y.ID)
}
