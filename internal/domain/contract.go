package domain

import "time"

type Contract struct {
	ID              string
	OrderID         string
	Status          ContractStatus
	TermsConditions string
	WarrantyInfo    string
	InsuranceInfo   string
	SignedAt        *time.Time
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContractTerms carries the free-text sections of a contract. On edit, empty
// fields keep their current value.
type ContractTerms struct {
	TermsConditions string
	WarrantyInfo    string
	InsuranceInfo   string
}

func (c Contract) Live() bool {
	return c.Status != ContractStatusCancelled
}

func (c Contract) Terms() ContractTerms {
	return ContractTerms{
		TermsConditions: c.TermsConditions,
		WarrantyInfo:    c.WarrantyInfo,
		InsuranceInfo:   c.InsuranceInfo,
	}
}

func (c *Contract) ApplyTerms(t ContractTerms) {
	if t.TermsConditions != "" {
		c.TermsConditions = t.TermsConditions
	}
	if t.WarrantyInfo != "" {
		c.WarrantyInfo = t.WarrantyInfo
	}
	if t.InsuranceInfo != "" {
		c.InsuranceInfo = t.InsuranceInfo
	}
}
