package postgres

import (
	"github.com/rajendrakhanal/schoolpay/internal/domain"
)

func invoiceToDBModel(inv *domain.Invoice) InvoiceModel {
	return InvoiceModel{
		ID:               inv.ID,
		StudentID:        inv.StudentID,
		FeeDefinitionID:  inv.FeeDefinitionID,
		PeriodID:         inv.PeriodID,
		Number:           inv.Number,
		DueDate:          inv.DueDate,
		Subtotal:         inv.Subtotal,
		Discount:         inv.Discount,
		DiscountReason:   inv.DiscountReason,
		DiscountApproval: string(inv.DiscountApproval),
		TotalAmount:      inv.TotalAmount,
		PaidAmount:       inv.PaidAmount,
		Balance:          inv.Balance,
		Status:           string(inv.Status),
		CreatedAt:        inv.CreatedAt,
	}
}

func invoiceToDomainModel(m InvoiceModel, items []domain.InvoiceItem) *domain.Invoice {
	return &domain.Invoice{
		ID:               m.ID,
		StudentID:        m.StudentID,
		FeeDefinitionID:  m.FeeDefinitionID,
		PeriodID:         m.PeriodID,
		Number:           m.Number,
		DueDate:          m.DueDate,
		Subtotal:         m.Subtotal,
		Discount:         m.Discount,
		DiscountReason:   m.DiscountReason,
		DiscountApproval: domain.DiscountApproval(m.DiscountApproval),
		TotalAmount:      m.TotalAmount,
		PaidAmount:       m.PaidAmount,
		Balance:          m.Balance,
		Status:           domain.InvoiceStatus(m.Status),
		Items:            items,
		CreatedAt:        m.CreatedAt,
	}
}

func itemToDomainModel(m InvoiceItemModel) domain.InvoiceItem {
	return domain.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		ComponentID: m.ComponentID,
		Description: m.Description,
		Amount:      m.Amount,
	}
}

func paymentToDBModel(p *domain.Payment) PaymentModel {
	return PaymentModel{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		StudentID:     p.StudentID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Gateway:       p.Gateway,
		ExternalTxnID: p.ExternalTxnID,
		ReceiptNumber: p.ReceiptNumber,
		Status:        string(p.Status),
		PlanID:        p.PlanID,
		InstallmentNo: p.InstallmentNo,
		ReceivedBy:    p.ReceivedBy,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
		RefundedBy:    p.RefundedBy,
		RefundReason:  p.RefundReason,
		CreatedAt:     p.CreatedAt,
	}
}

func paymentToDomainModel(m PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:            m.ID,
		InvoiceID:     m.InvoiceID,
		StudentID:     m.StudentID,
		Amount:        m.Amount,
		Method:        domain.PaymentMethod(m.Method),
		Gateway:       m.Gateway,
		ExternalTxnID: m.ExternalTxnID,
		ReceiptNumber: m.ReceiptNumber,
		Status:        domain.PaymentStatus(m.Status),
		PlanID:        m.PlanID,
		InstallmentNo: m.InstallmentNo,
		ReceivedBy:    m.ReceivedBy,
		PaidAt:        m.PaidAt,
		RefundedAt:    m.RefundedAt,
		RefundedBy:    m.RefundedBy,
		RefundReason:  m.RefundReason,
		CreatedAt:     m.CreatedAt,
	}
}

func planToDBModel(p *domain.InstallmentPlan) InstallmentPlanModel {
	return InstallmentPlanModel{
		ID:                   p.ID,
		InvoiceID:            p.InvoiceID,
		StudentID:            p.StudentID,
		TotalAmount:          p.TotalAmount,
		NumberOfInstallments: p.NumberOfInstallments,
		InstallmentAmount:    p.InstallmentAmount,
		Frequency:            string(p.Frequency),
		StartDate:            p.StartDate,
		Status:               string(p.Status),
		CreatedAt:            p.CreatedAt,
	}
}

func planToDomainModel(m InstallmentPlanModel) *domain.InstallmentPlan {
	return &domain.InstallmentPlan{
		ID:                   m.ID,
		InvoiceID:            m.InvoiceID,
		StudentID:            m.StudentID,
		TotalAmount:          m.TotalAmount,
		NumberOfInstallments: m.NumberOfInstallments,
		InstallmentAmount:    m.InstallmentAmount,
		Frequency:            domain.PlanFrequency(m.Frequency),
		StartDate:            m.StartDate,
		Status:               domain.PlanStatus(m.Status),
		CreatedAt:            m.CreatedAt,
	}
}

func txnToDBModel(t *domain.GatewayTransaction) GatewayTransactionModel {
	return GatewayTransactionModel{
		ID:              t.ID,
		TransactionUUID: t.TransactionUUID,
		Gateway:         t.Gateway,
		InvoiceID:       t.InvoiceID,
		StudentID:       t.StudentID,
		Amount:          t.Amount,
		TaxAmount:       t.TaxAmount,
		ServiceCharge:   t.ServiceCharge,
		TotalAmount:     t.TotalAmount,
		Signature:       t.Signature,
		Status:          string(t.Status),
		ExpiresAt:       t.ExpiresAt,
		RawResponse:     t.RawResponse,
		PaymentID:       t.PaymentID,
		FailureReason:   t.FailureReason,
		CreatedAt:       t.CreatedAt,
	}
}

func txnToDomainModel(m GatewayTransactionModel) *domain.GatewayTransaction {
	return &domain.GatewayTransaction{
		ID:              m.ID,
		TransactionUUID: m.TransactionUUID,
		Gateway:         m.Gateway,
		InvoiceID:       m.InvoiceID,
		StudentID:       m.StudentID,
		Amount:          m.Amount,
		TaxAmount:       m.TaxAmount,
		ServiceCharge:   m.ServiceCharge,
		TotalAmount:     m.TotalAmount,
		Signature:       m.Signature,
		Status:          domain.GatewayTxnStatus(m.Status),
		ExpiresAt:       m.ExpiresAt,
		RawResponse:     m.RawResponse,
		PaymentID:       m.PaymentID,
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt,
	}
}
