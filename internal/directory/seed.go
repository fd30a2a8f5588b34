package directory

import (
	"context"
	"time"

	id "auditflow/pkg/domain"

	"auditflow/internal/directory/models"
)

// SeedDemo loads a small directory for demo deployments: a quality manager
// with organization-wide approval authority, two departments with a lead
// auditor and members, and a system administrator.
func SeedDemo(ctx context.Context, s *Service) error {
	now := time.Now().UTC()

	production := models.Department{
		ID:        id.NewDepartmentID(),
		Name:      id.BilingualText{Ar: "الإنتاج", En: "Production"},
		CreatedAt: now,
	}
	qualityDept := models.Department{
		ID:        id.NewDepartmentID(),
		Name:      id.BilingualText{Ar: "الجودة", En: "Quality"},
		CreatedAt: now,
	}

	admin := models.User{
		ID:           id.NewUserID(),
		Name:         id.BilingualText{Ar: "مدير النظام", En: "System Administrator"},
		Email:        "admin@example.com",
		DepartmentID: qualityDept.ID,
		Roles:        []models.Role{models.RoleSystemAdmin},
		CreatedAt:    now,
	}
	qualityManager := models.User{
		ID:           id.NewUserID(),
		Name:         id.BilingualText{Ar: "مدير الجودة", En: "Quality Manager"},
		Email:        "qm@example.com",
		DepartmentID: qualityDept.ID,
		Roles:        []models.Role{models.RoleQualityManager},
		CreatedAt:    now,
	}
	leadAuditor := models.User{
		ID:           id.NewUserID(),
		Name:         id.BilingualText{Ar: "المدقق الرئيسي", En: "Lead Auditor"},
		Email:        "lead@example.com",
		DepartmentID: qualityDept.ID,
		Roles:        []models.Role{models.RoleAuditor},
		CreatedAt:    now,
	}
	productionManager := models.User{
		ID:           id.NewUserID(),
		Name:         id.BilingualText{Ar: "مدير الإنتاج", En: "Production Manager"},
		Email:        "prod-manager@example.com",
		DepartmentID: production.ID,
		Roles:        []models.Role{models.RoleDepartmentManager},
		CreatedAt:    now,
	}

	production.ManagerID = productionManager.ID
	qualityDept.ManagerID = qualityManager.ID

	for _, dept := range []models.Department{production, qualityDept} {
		if err := s.SaveDepartment(ctx, dept); err != nil {
			return err
		}
	}
	for _, user := range []models.User{admin, qualityManager, leadAuditor, productionManager} {
		if err := s.SaveUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
