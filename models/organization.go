package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization is a client company diagnosed by a tenant.
type Organization struct {
	ID                  string    `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	TenantID            string    `gorm:"column:tenant_id;type:char(36);not null;index" json:"tenantId"`
	Name                string    `gorm:"column:name;size:255;not null" json:"name"`
	TradeName           *string   `gorm:"column:trade_name;size:255" json:"tradeName"`
	TaxID               *string   `gorm:"column:tax_id;size:32;index" json:"taxId"`
	Industry            *string   `gorm:"column:industry;size:100" json:"industry"`
	Size                *string   `gorm:"column:size;size:50" json:"size"`
	Website             *string   `gorm:"column:website;size:255" json:"website"`
	AddressStreet       *string   `gorm:"column:address_street;size:255" json:"addressStreet"`
	AddressNumber       *string   `gorm:"column:address_number;size:20" json:"addressNumber"`
	AddressComplement   *string   `gorm:"column:address_complement;size:100" json:"addressComplement"`
	AddressNeighborhood *string   `gorm:"column:address_neighborhood;size:100" json:"addressNeighborhood"`
	AddressCity         *string   `gorm:"column:address_city;size:100" json:"addressCity"`
	AddressState        *string   `gorm:"column:address_state;size:50" json:"addressState"`
	AddressZipCode      *string   `gorm:"column:address_zip_code;size:20" json:"addressZipCode"`
	ContactName         *string   `gorm:"column:contact_name;size:255" json:"contactName"`
	ContactEmail        *string   `gorm:"column:contact_email;size:255" json:"contactEmail"`
	ContactPhone        *string   `gorm:"column:contact_phone;size:50" json:"contactPhone"`
	Mission             *string   `gorm:"column:mission;type:text" json:"mission"`
	Vision              *string   `gorm:"column:vision;type:text" json:"vision"`
	Values              *string   `gorm:"column:values_statement;type:text" json:"values"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt           time.Time `gorm:"column:updated_at" json:"updatedAt"`

	Users []User `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// DisplayName prefers the contact name, then the trade name.
func (o Organization) DisplayName() string {
	if o.ContactName != nil && *o.ContactName != "" {
		return *o.ContactName
	}
	if o.TradeName != nil && *o.TradeName != "" {
		return *o.TradeName
	}
	return o.Name
}

type TeamMember struct {
	ID             string     `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	OrganizationID string     `gorm:"column:organization_id;type:char(36);not null;uniqueIndex:idx_team_members_org_email" json:"organizationId"`
	Name           string     `gorm:"column:name;size:255;not null" json:"name"`
	Email          string     `gorm:"column:email;size:255;not null;uniqueIndex:idx_team_members_org_email" json:"email"`
	Position       *string    `gorm:"column:position;size:100" json:"position"`
	Department     *string    `gorm:"column:department;size:100" json:"department"`
	HireDate       *time.Time `gorm:"column:hire_date" json:"hireDate"`
	ContractType   *string    `gorm:"column:contract_type;size:50" json:"contractType"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"createdAt"`
}

func (TeamMember) TableName() string { return "team_members" }

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
