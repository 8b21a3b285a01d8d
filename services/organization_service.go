package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

type OrganizationService struct {
	db         *gorm.DB
	checklists *ChecklistService
	logger     *zap.Logger
}

func NewOrganizationService(db *gorm.DB, checklists *ChecklistService, logger *zap.Logger) *OrganizationService {
	if db == nil {
		db = config.DB
	}
	logger = loggerOrDefault(logger)
	if checklists == nil {
		checklists = NewChecklistService(db, nil, nil, logger)
	}
	return &OrganizationService{db: db, checklists: checklists, logger: logger}
}

type OrganizationInput struct {
	Name                *string `json:"name"`
	TradeName           *string `json:"tradeName"`
	TaxID               *string `json:"taxId"`
	Industry            *string `json:"industry"`
	Size                *string `json:"size"`
	Website             *string `json:"website"`
	AddressStreet       *string `json:"addressStreet"`
	AddressNumber       *string `json:"addressNumber"`
	AddressComplement   *string `json:"addressComplement"`
	AddressNeighborhood *string `json:"addressNeighborhood"`
	AddressCity         *string `json:"addressCity"`
	AddressState        *string `json:"addressState"`
	AddressZipCode      *string `json:"addressZipCode"`
	ContactName         *string `json:"contactName"`
	ContactEmail        *string `json:"contactEmail"`
	ContactPhone        *string `json:"contactPhone"`
	Mission             *string `json:"mission"`
	Vision              *string `json:"vision"`
	Values              *string `json:"values"`
}

// columns maps the provided fields to their columns. Blank strings clear
// the column.
func (in OrganizationInput) columns() map[string]interface{} {
	out := map[string]interface{}{}
	set := func(column string, v *string) {
		if v == nil {
			return
		}
		out[column] = strPtr(*v)
	}
	set("trade_name", in.TradeName)
	set("tax_id", in.TaxID)
	set("industry", in.Industry)
	set("size", in.Size)
	set("website", in.Website)
	set("address_street", in.AddressStreet)
	set("address_number", in.AddressNumber)
	set("address_complement", in.AddressComplement)
	set("address_neighborhood", in.AddressNeighborhood)
	set("address_city", in.AddressCity)
	set("address_state", in.AddressState)
	set("address_zip_code", in.AddressZipCode)
	set("contact_name", in.ContactName)
	set("contact_phone", in.ContactPhone)
	set("mission", in.Mission)
	set("vision", in.Vision)
	set("values_statement", in.Values)
	if in.ContactEmail != nil {
		out["contact_email"] = strPtr(strings.ToLower(*in.ContactEmail))
	}
	return out
}

func (s *OrganizationService) List(ctx context.Context, actor Actor) ([]models.Organization, error) {
	q := s.db.WithContext(ctx)
	if actor.Role != models.RoleSuperAdmin {
		q = q.Where("tenant_id = ?", actor.TenantID)
	}
	if actor.Role == models.RoleClient {
		q = q.Where("id = ?", actor.OrganizationID)
	}
	orgs := []models.Organization{}
	err := q.Order("name ASC").Find(&orgs).Error
	return orgs, err
}

func (s *OrganizationService) Get(ctx context.Context, actor Actor, id string) (*models.Organization, error) {
	return findOrganizationFor(ctx, s.db, actor, id)
}

func (s *OrganizationService) taxIDTaken(ctx context.Context, tenantID, taxID, exceptID string) (bool, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Organization{}).Where("tenant_id = ? AND tax_id = ?", tenantID, taxID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *OrganizationService) Create(ctx context.Context, actor Actor, in OrganizationInput) (*models.Organization, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperrors.Field("name", "name is required")
	}
	if actor.TenantID == "" {
		return nil, apperrors.Field("tenantId", "organizations belong to a tenant")
	}
	if taxID := strPtr(deref(in.TaxID)); taxID != nil {
		taken, err := s.taxIDTaken(ctx, actor.TenantID, *taxID, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.Conflict("an organization with this tax id already exists")
		}
	}

	org := models.Organization{TenantID: actor.TenantID, Name: strings.TrimSpace(*in.Name)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		if cols := in.columns(); len(cols) > 0 {
			return tx.Model(&org).Updates(cols).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, org.ID)
}

// Update changes the profile and reconciles every project of the
// organization, since mission and values count as a checklist answer.
func (s *OrganizationService) Update(ctx context.Context, actor Actor, id string, in OrganizationInput) (*models.Organization, error) {
	org, err := findOrganizationFor(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	cols := in.columns()
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperrors.Field("name", "name must not be empty")
		}
		cols["name"] = strings.TrimSpace(*in.Name)
	}
	if taxID := strPtr(deref(in.TaxID)); taxID != nil {
		taken, err := s.taxIDTaken(ctx, org.TenantID, *taxID, org.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.Conflict("an organization with this tax id already exists")
		}
	}
	if len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(org).Updates(cols).Error; err != nil {
			return nil, err
		}
	}
	s.checklists.SyncOrganization(ctx, org.ID)
	return s.Get(ctx, actor, org.ID)
}

func (s *OrganizationService) Delete(ctx context.Context, actor Actor, id string) error {
	org, err := findOrganizationFor(ctx, s.db, actor, id)
	if err != nil {
		return err
	}
	var projects int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("organization_id = ?", org.ID).Count(&projects).Error; err != nil {
		return err
	}
	if projects > 0 {
		return apperrors.Conflict("organization still has projects")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", org.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("organization_id = ?", org.ID).Update("organization_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Organization{}, "id = ?", org.ID).Error
	})
}

func (s *OrganizationService) TeamMembers(ctx context.Context, actor Actor, id string) ([]models.TeamMember, error) {
	org, err := findOrganizationFor(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	members := []models.TeamMember{}
	err = s.db.WithContext(ctx).Where("organization_id = ?", org.ID).Order("name ASC").Find(&members).Error
	return members, err
}

type TeamMemberInput struct {
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	Position     *string `json:"position"`
	Department   *string `json:"department"`
	HireDate     *string `json:"hireDate"`
	ContractType *string `json:"contractType"`
}

// ImportTeamMembers inserts members, skipping e-mails already on the team.
// It returns how many rows were created.
func (s *OrganizationService) ImportTeamMembers(ctx context.Context, actor Actor, id string, in []TeamMemberInput) (int64, error) {
	org, err := findOrganizationFor(ctx, s.db, actor, id)
	if err != nil {
		return 0, err
	}
	if len(in) == 0 {
		return 0, nil
	}
	rows := make([]models.TeamMember, 0, len(in))
	fields := map[string][]string{}
	for _, m := range in {
		name := strings.TrimSpace(m.Name)
		email := strings.ToLower(strings.TrimSpace(m.Email))
		if name == "" || email == "" {
			fields["members"] = append(fields["members"], "every member needs a name and an e-mail")
			continue
		}
		member := models.TeamMember{
			OrganizationID: org.ID,
			Name:           name,
			Email:          email,
			Position:       strPtr(deref(m.Position)),
			Department:     strPtr(deref(m.Department)),
			ContractType:   strPtr(deref(m.ContractType)),
		}
		if raw := strings.TrimSpace(deref(m.HireDate)); raw != "" {
			hired, err := parseDate(raw)
			if err != nil {
				fields["hireDate"] = append(fields["hireDate"], "hireDate must be YYYY-MM-DD: "+raw)
				continue
			}
			member.HireDate = &hired
		}
		rows = append(rows, member)
	}
	if len(fields) > 0 {
		return 0, apperrors.Validation(fields)
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	return res.RowsAffected, res.Error
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
